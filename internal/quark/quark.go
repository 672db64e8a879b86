// Package quark provides a process-wide, append-only mapping between byte
// strings and small dense integer ids, mirroring libtransmission's tr_quark.
package quark

import "sync"

// ID is a stable integer handle for an interned string.
type ID int32

// None is the id for the empty string; it is always valid.
const None ID = 0

var (
	mu     sync.RWMutex
	byName = make(map[string]ID, 256)
	byID   []string
)

func register(s string) ID {
	if id, ok := byName[s]; ok {
		return id
	}
	id := ID(len(byID))
	byID = append(byID, s)
	byName[s] = id
	return id
}

// Built-in quarks. Ids are assigned in source order at package init time so
// that the set of names below never shifts ids across builds, matching the
// original's requirement that built-in ids be fixed to preserve on-disk and
// on-wire compatibility. New entries must be appended, never inserted.
var (
	None_ = register("")

	// Torrent / RPC fields.
	ID_                    = register("id")
	Name                   = register("name")
	HashString             = register("hashString")
	Status                 = register("status")
	TotalSize              = register("totalSize")
	LeftUntilDone          = register("leftUntilDone")
	SizeWhenDone           = register("sizeWhenDone")
	HaveValid              = register("haveValid")
	HaveUnchecked          = register("haveUnchecked")
	PercentDone            = register("percentDone")
	RateDownload           = register("rateDownload")
	RateUpload             = register("rateUpload")
	Eta                    = register("eta")
	PeersConnected         = register("peersConnected")
	PeersGettingFromUs     = register("peersGettingFromUs")
	PeersSendingToUs       = register("peersSendingToUs")
	Error                  = register("error")
	ErrorString            = register("errorString")
	DownloadDir            = register("downloadDir")
	QueuePosition          = register("queuePosition")
	Labels                 = register("labels")
	Files                  = register("files")
	Trackers               = register("trackers")
	TrackerStats           = register("trackerStats")
	BandwidthPriority      = register("bandwidthPriority")
	SequentialDownload     = register("sequentialDownload")
	Group                  = register("group")

	UploadedEverSnake   = register("uploaded_bytes")
	UploadedEverCamel   = register("uploadedBytes")
	DownloadedEverSnake = register("downloaded_bytes")
	DownloadedEverCamel = register("downloadedBytes")
	CorruptEverSnake    = register("corrupt_bytes")
	CorruptEverCamel    = register("corruptBytes")
	ActivityDateSnake   = register("activity_date")
	ActivityDateCamel   = register("activityDate")
	AddedDateSnake      = register("added_date")
	AddedDateCamel      = register("addedDate")
	DoneDateSnake       = register("done_date")
	DoneDateCamel       = register("doneDate")
	SecondsDownloading  = register("secondsDownloading")
	SecondsSeeding      = register("secondsSeeding")

	// RPC envelope.
	Method      = register("method")
	Arguments   = register("arguments")
	Tag         = register("tag")
	Result      = register("result")
	IDs         = register("ids")
	Fields      = register("fields")
	Format      = register("format")
	Removed     = register("removed")
	Torrents    = register("torrents")
	TorrentDup  = register("torrent-duplicate")
	TorrentAdd  = register("torrent-added")

	// torrent-add arguments.
	Filename         = register("filename")
	Metainfo         = register("metainfo")
	Paused           = register("paused")
	PeerLimit        = register("peer-limit")
	FilesWanted      = register("files-wanted")
	FilesUnwanted    = register("files-unwanted")
	PriorityHigh     = register("priority-high")
	PriorityLow      = register("priority-low")
	PriorityNormal   = register("priority-normal")
	Cookies          = register("cookies")
	Location         = register("location")
	Move             = register("move")
	DeleteLocalData  = register("delete-local-data")
	TrackerList      = register("trackerList")
	TrackerAdd       = register("trackerAdd")
	TrackerRemove    = register("trackerRemove")
	TrackerReplace   = register("trackerReplace")

	Path      = register("path")
	SizeBytes = register("size-bytes")
	TotalSizeFreeSpace = register("total_size")

	RPCVersion        = register("rpc-version")
	RPCVersionMin     = register("rpc-version-minimum")
	RPCVersionSemver  = register("rpc-version-semver")

	IPProtocol = register("ip-protocol")
	Port       = register("port")
)

// Legacy camelCase -> canonical snake_case alias table, mirroring
// original_source/libtransmission/quark.h's *_camel entries.
var legacy = map[ID]ID{
	UploadedEverCamel:   UploadedEverSnake,
	DownloadedEverCamel: DownloadedEverSnake,
	CorruptEverCamel:    CorruptEverSnake,
	ActivityDateCamel:   ActivityDateSnake,
	AddedDateCamel:      AddedDateSnake,
	DoneDateCamel:       DoneDateSnake,
}

// reverse alias: canonical -> deprecated, used when we need to emit both.
var legacyReverse = func() map[ID]ID {
	m := make(map[ID]ID, len(legacy))
	for camel, canon := range legacy {
		m[canon] = camel
	}
	return m
}()

// Intern returns the id for s, allocating a new one if s has never been
// seen before. It allocates at most once per distinct input.
func Intern(s string) ID {
	mu.RLock()
	if id, ok := byName[s]; ok {
		mu.RUnlock()
		return id
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	return register(s)
}

// Lookup returns the id for s without interning it.
func Lookup(s string) (ID, bool) {
	mu.RLock()
	defer mu.RUnlock()
	id, ok := byName[s]
	return id, ok
}

// String returns the string s was interned from.
func (id ID) String() string {
	mu.RLock()
	defer mu.RUnlock()
	if int(id) < 0 || int(id) >= len(byID) {
		return ""
	}
	return byID[id]
}

// Convert maps a deprecated camelCase quark to its canonical snake_case
// replacement. Ids with no legacy mapping are returned unchanged.
func Convert(id ID) ID {
	if canon, ok := legacy[id]; ok {
		return canon
	}
	return id
}

// Deprecated returns the legacy camelCase alias for a canonical id, if one
// is registered. Used when emitting both forms for compatibility.
func Deprecated(id ID) (ID, bool) {
	dep, ok := legacyReverse[id]
	return dep, ok
}
