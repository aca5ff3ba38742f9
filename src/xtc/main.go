// xtc builds binutils-gdb, GCC and mingw-w64 into cross and Canadian-cross
// compiler toolchains.
package main

import (
	"github.com/bitswalk/xtc/src/xtc/core"
)

func main() {
	core.Execute()
}
