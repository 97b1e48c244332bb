package wowplug

// Message constants for the command tree
const (
	MsgRootShort = "An addon manager for World of Warcraft"
	MsgRootLong  = `wowplug keeps a game client's AddOns directory in sync with a
user-edited manifest. Enabled addons are installed or restored, disabled
ones are quarantined to .wowplugcache so they can come back without a
re-download.`

	MsgFlagVerbose = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"
	MsgFlagConfig  = "Config file (default is $XDG_CONFIG_HOME/wowplug/wowplug.toml)"

	MsgScanShort = "Scan a directory for installed addons"
	MsgScanLong  = `Scan <dir> to get a list of installed addons. If no <dir> is given,
the previously scanned directory is used. With --output, the result is
written as a manifest file usable by sync.`

	MsgSyncShort = "Sync the addon directory to a manifest"
	MsgSyncLong  = `Sync the enabled addons listed in <file> to the addon directory.
If no <file> is given, the previously synced one is used. Addons that
are not in <file> or are disabled are moved to .wowplugcache. Addons
that exist in neither the addon directory nor .wowplugcache are
downloaded and installed.`

	MsgCleanShort = "Quarantine every addon listed in a manifest"
	MsgCleanLong  = `Sync <file> as if every addon listed in it were disabled. This moves
all live addons to .wowplugcache (or deletes them with --delete).`

	MsgConfigShort = "Print the effective configuration"
)
