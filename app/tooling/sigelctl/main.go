package main

import (
	"github.com/aseio6668/Sigmos/app/tooling/sigelctl/cmd"
)

func main() {
	cmd.Execute()
}
