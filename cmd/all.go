package cmd

import (
	_ "pkgsync/cmd/packages"
	_ "pkgsync/cmd/root"
	_ "pkgsync/cmd/server"
)
