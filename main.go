// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/invowk/makerel/cmd/makerel"

func main() {
	cmd.Execute()
}
