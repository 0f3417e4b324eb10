//go:build windows && 386

package hook

import "decode"

const nativeMode = decode.Mode32
const is64Bit = false
