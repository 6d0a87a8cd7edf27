package cart

// noBackup is installed for cartridges that carry no detected backup
// technology at all. Reads return the GamePak SRAM window's open-bus value;
// writes are discarded.
type noBackup struct{}

func newNoBackup() *noBackup { return &noBackup{} }

func (*noBackup) Kind() BackupKind                { return BackupNone }
func (*noBackup) ReadByte(offset uint32) byte     { return 0xFF }
func (*noBackup) WriteByte(offset uint32, v byte) {}
func (*noBackup) Save() []byte                    { return nil }
func (*noBackup) Load(data []byte) error          { return nil }
