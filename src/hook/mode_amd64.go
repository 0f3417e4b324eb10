//go:build windows && amd64

package hook

import "decode"

const nativeMode = decode.Mode64
const is64Bit = true
