//go:build linux

package watcher

import "golang.org/x/sys/unix"

// Superblock magic numbers from statfs(2).
const (
	nfsMagic  = 0x6969
	smbMagic  = 0x517b
	cifsMagic = 0xff534d42
	smb2Magic = 0xfe534d42
	fuseMagic = 0x65735546
)

func detectFilesystemType(path string) FilesystemType {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return FSTypeUnknown
	}
	switch uint32(st.Type) {
	case nfsMagic:
		return FSTypeNFS
	case smbMagic, cifsMagic, smb2Magic:
		return FSTypeSMB
	case fuseMagic:
		return FSTypeFUSE
	}
	return FSTypeLocal
}
