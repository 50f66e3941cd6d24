// Package packages holds the package sync sub commands: list, archive,
// extract, upload, sync and the revision commands.
package packages

const packagesExample = `  # show what the host would sync
  pkgsync list
  pkgsync --packages gcc,headers sync -x
  pkgsync archive --archive-package gcc out/gcc.tgz,gcc:. -x
  pkgsync upload --upload-package gcc --revision 1234
  pkgsync setrevision --revision-package gcc --revision 1234
  pkgsync getrevision --revision-package linux_x86/gcc`
