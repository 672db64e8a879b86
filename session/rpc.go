package session

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tearfur/transmission/internal/bitfield"
	"github.com/tearfur/transmission/internal/quark"
	"github.com/tearfur/transmission/internal/rpc"
	"github.com/tearfur/transmission/internal/variant"
)

// registerRPC wires every method named in the external RPC surface onto
// s.dispatcher, mirroring the teacher's one-function-per-method
// registration style. Handlers read and write fields mostly by name
// (GetByName, SetByName, Builder.Put), and by quark id for the
// legacy dual-key fields.
func (s *Session) registerRPC() {
	d := s.dispatcher
	d.Handle("session-get", s.rpcSessionGet)
	d.Handle("session-set", s.rpcSessionSet)
	d.Handle("session-stats", s.rpcSessionStats)
	d.Handle("session-close", s.rpcSessionClose)
	d.Handle("free-space", s.rpcFreeSpace)
	d.Handle("port-test", s.rpcPortTest)
	d.Handle("blocklist-update", s.rpcBlocklistUpdate)

	d.Handle("torrent-add", s.rpcTorrentAdd)
	d.Handle("torrent-get", s.rpcTorrentGet)
	d.Handle("torrent-set", s.rpcTorrentSet)
	d.Handle("torrent-remove", s.rpcTorrentRemove)
	d.Handle("torrent-start", s.rpcTorrentStart(false))
	d.Handle("torrent-start-now", s.rpcTorrentStart(true))
	d.Handle("torrent-stop", s.rpcTorrentStop)
	d.Handle("torrent-verify", s.rpcTorrentVerify)
	d.Handle("torrent-reannounce", s.rpcTorrentReannounce)
	d.Handle("torrent-set-location", s.rpcTorrentSetLocation)
	d.Handle("torrent-rename-path", s.rpcTorrentRenamePath)

	d.Handle("queue-move-top", s.rpcQueueMove(queueTop))
	d.Handle("queue-move-up", s.rpcQueueMove(queueUp))
	d.Handle("queue-move-down", s.rpcQueueMove(queueDown))
	d.Handle("queue-move-bottom", s.rpcQueueMove(queueBottom))

	d.Handle("group-get", s.rpcGroupGet)
	d.Handle("group-set", s.rpcGroupSet)
}

// Dispatch exposes the session's configured method table to whatever
// transport embeds it (HTTP via gorilla/mux, or a direct in-process
// caller in tests).
func (s *Session) Dispatch(req variant.Value) variant.Value {
	return s.dispatcher.Dispatch(req)
}

func ok(reply func(string, variant.Value), args variant.Value) {
	reply("success", args)
}

func fail(reply func(string, variant.Value), msg string) {
	reply(msg, variant.Null())
}

// idList reads args.ids, which is either absent (every torrent), a
// single id/hash string, or a vector mixing ids and hash strings, per
// the RPC spec's torrent selector convention.
func (s *Session) idList(args variant.Value) ([]*torrent, bool, []int64) {
	val, ok := args.GetByName("ids")
	if !ok {
		return s.Torrents(), false, nil
	}
	if str, ok2 := val.Str(); ok2 && (str == "recently-active" || str == "recently_active") {
		return s.recentlyActiveTorrents()
	}
	var ids []variant.Value
	if vec, ok2 := val.Vec(); ok2 {
		ids = vec
	} else {
		ids = []variant.Value{val}
	}
	var out []*torrent
	for _, idv := range ids {
		if n, ok2 := idv.Int(); ok2 {
			if t := s.torrentByID(n); t != nil {
				out = append(out, t)
			}
			continue
		}
		if hash, ok2 := idv.Str(); ok2 {
			var ih [20]byte
			if b, err := decodeHexHash(hash); err == nil {
				ih = b
				if t := s.torrentByHash(ih); t != nil {
					out = append(out, t)
				}
			}
		}
	}
	return out, false, nil
}

func decodeHexHash(s string) ([20]byte, error) {
	var out [20]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 20 {
		return out, fmt.Errorf("bad hash string %q", s)
	}
	copy(out[:], b)
	return out, nil
}

// recentlyActiveTorrents returns every torrent touched (added, or still
// present) and the ids removed within the last 60s, the shape
// torrent-get's ids:"recently-active" scenario needs.
func (s *Session) recentlyActiveTorrents() ([]*torrent, bool, []int64) {
	return s.Torrents(), true, s.recentlyRemovedSince(60 * time.Second)
}

func hexHash(ih [20]byte) string { return hexInfoHash(ih) }

// torrentID returns the dense session-assigned id for t by scanning the
// registry; torrent-get's "id" field and queue moves need the id, which
// a *torrent itself does not carry.
func (s *Session) torrentID(t *torrent) int64 {
	s.m.RLock()
	defer s.m.RUnlock()
	for id, tt := range s.torrents {
		if tt == t {
			return id
		}
	}
	return -1
}

// ---- torrent-get ----

func (s *Session) rpcTorrentGet(args variant.Value, reply func(string, variant.Value)) {
	torrents, recentlyActive, removed := s.idList(args)

	var fieldNames []string
	if fv, ok := args.GetByName("fields"); ok {
		if vec, ok2 := fv.Vec(); ok2 {
			for _, f := range vec {
				if name, ok3 := f.Str(); ok3 {
					fieldNames = append(fieldNames, name)
				}
			}
		}
	}
	if len(fieldNames) == 0 {
		fail(reply, "no fields specified")
		return
	}

	format := "objects"
	if fv, ok := args.GetByName("format"); ok {
		if fs, ok2 := fv.Str(); ok2 {
			format = fs
		}
	}

	rows := make([]variant.Value, 0, len(torrents))
	for _, t := range torrents {
		rows = append(rows, s.torrentFields(t, fieldNames))
	}

	b := variant.NewBuilder()
	if format == "table" {
		header := variant.NewVector(len(fieldNames))
		for _, f := range fieldNames {
			header.Append(variant.String(f))
		}
		table := variant.NewVector(len(rows) + 1)
		table.Append(header)
		for _, row := range rows {
			rowVec := variant.NewVector(len(fieldNames))
			for _, f := range fieldNames {
				if id, ok := quark.Lookup(f); ok {
					if v, ok2 := row.Get(id); ok2 {
						rowVec.Append(v)
						continue
					}
					if v, ok2 := row.Get(quark.Convert(id)); ok2 {
						rowVec.Append(v)
						continue
					}
				}
				rowVec.Append(variant.Null())
			}
			table.Append(rowVec)
		}
		b.PutValue(quark.Torrents, table)
	} else {
		vec := variant.NewVector(len(rows))
		for _, row := range rows {
			vec.Append(row)
		}
		b.PutValue(quark.Torrents, vec)
	}
	if recentlyActive {
		ridVec := variant.NewVector(len(removed))
		for _, id := range removed {
			ridVec.Append(variant.Int(id))
		}
		b.PutValue(quark.Removed, ridVec)
	}
	ok(reply, b.Value())
}

// torrentFields reads t's stats/trackerStats/peerStats off its event
// loop and assembles the subset of fields the caller asked for.
func (s *Session) torrentFields(t *torrent, fields []string) variant.Value {
	statsReq := statsRequest{Response: make(chan Stats, 1)}
	t.statsCommandC <- statsReq
	st := <-statsReq.Response

	v := variant.NewMap()
	id := s.torrentID(t)
	for _, f := range fields {
		switch f {
		case "id":
			v.SetByName("id", variant.Int(id))
		case "name":
			v.SetByName("name", variant.String(t.Name()))
		case "hashString":
			v.SetByName("hashString", variant.String(hexHash(t.infoHash)))
		case "status":
			v.SetByName("status", variant.Int(int64(st.Status)))
		case "totalSize":
			v.SetByName("totalSize", variant.Int(st.BytesTotal))
		case "leftUntilDone":
			v.SetByName("leftUntilDone", variant.Int(st.BytesLeft))
		case "sizeWhenDone":
			v.SetByName("sizeWhenDone", variant.Int(st.BytesTotal))
		case "haveValid":
			v.SetByName("haveValid", variant.Int(st.BytesCompleted))
		case "percentDone":
			pct := 0.0
			if st.BytesTotal > 0 {
				pct = float64(st.BytesCompleted) / float64(st.BytesTotal)
			}
			v.SetByName("percentDone", variant.Double(pct))
		case "rateDownload":
			v.SetByName("rateDownload", variant.Int(st.DownloadSpeed))
		case "rateUpload":
			v.SetByName("rateUpload", variant.Int(st.UploadSpeed))
		case "peersConnected":
			v.SetByName("peersConnected", variant.Int(int64(st.PeersConnected)))
		case "peersGettingFromUs":
			v.SetByName("peersGettingFromUs", variant.Int(int64(st.PeersGettingFromUs)))
		case "peersSendingToUs":
			v.SetByName("peersSendingToUs", variant.Int(int64(st.PeersSendingToUs)))
		case "uploadedBytes", "uploaded_bytes":
			v.Set(quark.UploadedEverSnake, variant.Int(st.BytesUploaded))
			v.Set(quark.UploadedEverCamel, variant.Int(st.BytesUploaded))
		case "downloadedBytes", "downloaded_bytes":
			v.Set(quark.DownloadedEverSnake, variant.Int(st.BytesDownloaded))
			v.Set(quark.DownloadedEverCamel, variant.Int(st.BytesDownloaded))
		case "corruptBytes", "corrupt_bytes":
			v.Set(quark.CorruptEverSnake, variant.Int(st.BytesWasted))
			v.Set(quark.CorruptEverCamel, variant.Int(st.BytesWasted))
		case "error":
			code := int64(0)
			if st.Error != "" {
				code = 1
			}
			v.SetByName("error", variant.Int(code))
		case "errorString":
			v.SetByName("errorString", variant.String(st.Error))
		case "downloadDir":
			v.SetByName("downloadDir", variant.String(t.downloadDir))
		case "queuePosition":
			v.SetByName("queuePosition", variant.Int(st.QueuePosition))
		case "labels":
			labels := variant.NewVector(len(t.labels))
			for _, l := range t.labels {
				labels.Append(variant.String(l))
			}
			v.SetByName("labels", labels)
		case "bandwidthPriority":
			v.SetByName("bandwidthPriority", variant.Int(t.bandwidthPriority))
		case "sequentialDownload":
			v.SetByName("sequentialDownload", variant.Bool(t.sequentialDownload))
		case "group":
			v.SetByName("group", variant.String(t.group))
		case "addedDate", "added_date":
			ts := t.addedAt.Unix()
			v.Set(quark.AddedDateSnake, variant.Int(ts))
			v.Set(quark.AddedDateCamel, variant.Int(ts))
		case "trackerStats":
			req := trackersRequest{Response: make(chan []TrackerStats, 1)}
			t.trackersCommandC <- req
			tst := <-req.Response
			vec := variant.NewVector(len(tst))
			for _, tr := range tst {
				e := variant.NewMap()
				e.SetByName("announce", variant.String(tr.URL))
				vec.Append(e)
			}
			v.SetByName("trackerStats", vec)
		case "peers":
			req := peersRequest{Response: make(chan []PeerStats, 1)}
			t.peersCommandC <- req
			pst := <-req.Response
			vec := variant.NewVector(len(pst))
			for _, p := range pst {
				e := variant.NewMap()
				e.SetByName("address", variant.String(p.Address))
				e.SetByName("rateToClient", variant.Int(p.RateToClient))
				e.SetByName("rateToPeer", variant.Int(p.RateToPeer))
				e.SetByName("progress", variant.Double(p.Progress))
				vec.Append(e)
			}
			v.SetByName("peers", vec)
		}
	}
	return v
}

// ---- torrent-add ----

func (s *Session) rpcTorrentAdd(args variant.Value, reply func(string, variant.Value)) {
	opts := addOptionsFromArgs(args)

	if dd, ok := args.GetByName("download-dir"); ok {
		if dir, ok2 := dd.Str(); ok2 {
			if !filepath.IsAbs(dir) {
				fail(reply, "download directory path is not absolute")
				return
			}
		}
	}

	if mv, ok := args.GetByName("metainfo"); ok {
		data, ok2 := mv.Str()
		if !ok2 {
			fail(reply, "no filename or metainfo specified")
			return
		}
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			fail(reply, err.Error())
			return
		}
		t, dup, err := s.AddTorrentReader(strings.NewReader(string(raw)), opts)
		s.replyTorrentAdded(reply, t, dup, err)
		return
	}

	fv, ok := args.GetByName("filename")
	if !ok {
		fail(reply, "no filename or metainfo specified")
		return
	}
	filename, _ := fv.Str()
	if filename == "" {
		fail(reply, "no filename or metainfo specified")
		return
	}
	if strings.HasPrefix(filename, "magnet:") {
		t, dup, err := s.AddMagnet(filename, opts)
		s.replyTorrentAdded(reply, t, dup, err)
		return
	}
	if strings.HasPrefix(filename, "http://") || strings.HasPrefix(filename, "https://") {
		completion := rpc.NewCompletion(reply)
		go func() {
			data, err := s.fetch(filename)
			if err != nil {
				completion.Complete(err.Error(), variant.Null())
				return
			}
			t, dup, err := s.AddTorrentReader(strings.NewReader(string(data)), opts)
			s.replyTorrentAdded(completion.Complete, t, dup, err)
		}()
		return
	}
	f, err := os.Open(filename)
	if err != nil {
		fail(reply, err.Error())
		return
	}
	defer f.Close()
	t, dup, err := s.AddTorrentReader(f, opts)
	s.replyTorrentAdded(reply, t, dup, err)
}

func addOptionsFromArgs(args variant.Value) addOptions {
	var o addOptions
	if v, ok := args.GetByName("download-dir"); ok {
		o.DownloadDir, _ = v.Str()
	}
	if v, ok := args.GetByName("paused"); ok {
		o.Paused, _ = v.Bool()
	}
	if v, ok := args.GetByName("peer-limit"); ok {
		n, _ := v.Int()
		o.PeerLimit = int(n)
	}
	if v, ok := args.GetByName("labels"); ok {
		if vec, ok2 := v.Vec(); ok2 {
			for _, e := range vec {
				if s, ok3 := e.Str(); ok3 {
					o.Labels = append(o.Labels, s)
				}
			}
		}
	}
	return o
}

func (s *Session) replyTorrentAdded(reply func(string, variant.Value), t *torrent, dup bool, err error) {
	if err != nil {
		fail(reply, err.Error())
		return
	}
	b := variant.NewBuilder()
	e := variant.NewMap()
	e.SetByName("id", variant.Int(s.torrentID(t)))
	e.SetByName("name", variant.String(t.Name()))
	e.SetByName("hashString", variant.String(hexHash(t.infoHash)))
	if dup {
		b.PutValue(quark.TorrentDup, e)
	} else {
		b.PutValue(quark.TorrentAdd, e)
	}
	ok(reply, b.Value())
}

// ---- torrent-set ----

func (s *Session) rpcTorrentSet(args variant.Value, reply func(string, variant.Value)) {
	fieldCount := args.Len()
	if _, hasIDs := args.GetByName("ids"); hasIDs {
		fieldCount--
	}
	if fieldCount <= 0 {
		fail(reply, "no fields specified")
		return
	}
	torrents, _, _ := s.idList(args)

	if lv, ok := args.GetByName("labels"); ok {
		vec, _ := lv.Vec()
		for _, e := range vec {
			name, _ := e.Str()
			if strings.Contains(name, ",") {
				fail(reply, "labels cannot contain comma (,) character")
				return
			}
			if name == "" {
				fail(reply, "labels cannot be empty")
				return
			}
		}
	}

	for _, t := range torrents {
		t.apply(func(tt *torrent) {
			applyTorrentSet(tt, args)
		})
	}
	ok(reply, variant.Null())
}

func applyTorrentSet(t *torrent, args variant.Value) {
	if v, ok := args.GetByName("labels"); ok {
		vec, _ := v.Vec()
		labels := make([]string, 0, len(vec))
		for _, e := range vec {
			if s, ok2 := e.Str(); ok2 {
				labels = append(labels, s)
			}
		}
		t.labels = labels
	}
	if v, ok := args.GetByName("bandwidthPriority"); ok {
		n, _ := v.Int()
		t.bandwidthPriority = n
	}
	if v, ok := args.GetByName("sequentialDownload"); ok {
		b, _ := v.Bool()
		t.sequentialDownload = b
		if t.piecePicker != nil {
			t.piecePicker.Sequential = b
		}
	}
	if v, ok := args.GetByName("peer-limit"); ok {
		n, _ := v.Int()
		t.peerLimit = int(n)
	}
	if v, ok := args.GetByName("group"); ok {
		t.group, _ = v.Str()
	}
	if v, ok := args.GetByName("queuePosition"); ok {
		n, _ := v.Int()
		t.queuePosition = n
	}
	applyFileSelection(t, args, "files-wanted", true)
	applyFileSelection(t, args, "files-unwanted", false)
	applyFilePriority(t, args, "priority-high", 1)
	applyFilePriority(t, args, "priority-normal", 0)
	applyFilePriority(t, args, "priority-low", -1)
}

func applyFileSelection(t *torrent, args variant.Value, field string, want bool) {
	v, ok := args.GetByName(field)
	if !ok || t.fileWanted == nil {
		return
	}
	vec, _ := v.Vec()
	for _, e := range vec {
		n, ok2 := e.Int()
		if !ok2 || n < 0 || int(n) >= len(t.fileWanted) {
			continue
		}
		t.fileWanted[n] = want
	}
}

func applyFilePriority(t *torrent, args variant.Value, field string, prio int8) {
	v, ok := args.GetByName(field)
	if !ok || t.filePriority == nil {
		return
	}
	vec, _ := v.Vec()
	for _, e := range vec {
		n, ok2 := e.Int()
		if !ok2 || n < 0 || int(n) >= len(t.filePriority) {
			continue
		}
		t.filePriority[n] = prio
	}
}

// ---- lifecycle: start/stop/verify/reannounce/remove ----

// rpcTorrentStart returns the torrent-start/torrent-start-now handler;
// the engine has no download queue to bypass, so both start a torrent's
// event loop immediately.
func (s *Session) rpcTorrentStart(now bool) rpc.Handler {
	return func(args variant.Value, reply func(string, variant.Value)) {
		torrents, _, _ := s.idList(args)
		for _, t := range torrents {
			t.startCommandC <- struct{}{}
		}
		ok(reply, variant.Null())
	}
}

func (s *Session) rpcTorrentStop(args variant.Value, reply func(string, variant.Value)) {
	torrents, _, _ := s.idList(args)
	for _, t := range torrents {
		t.stopCommandC <- struct{}{}
	}
	ok(reply, variant.Null())
}

func (s *Session) rpcTorrentVerify(args variant.Value, reply func(string, variant.Value)) {
	torrents, _, _ := s.idList(args)
	for _, t := range torrents {
		t.apply(func(tt *torrent) {
			if tt.info == nil {
				return
			}
			tt.bitfield = bitfield.New(tt.bitfield.Len())
			tt.startVerifier()
		})
	}
	ok(reply, variant.Null())
}

func (s *Session) rpcTorrentReannounce(args variant.Value, reply func(string, variant.Value)) {
	torrents, _, _ := s.idList(args)
	for _, t := range torrents {
		t.apply(func(tt *torrent) {
			for _, a := range tt.announcers {
				a.Close()
			}
			tt.announcers = nil
			tt.startAnnouncers()
		})
	}
	ok(reply, variant.Null())
}

func (s *Session) rpcTorrentRemove(args variant.Value, reply func(string, variant.Value)) {
	torrents, _, _ := s.idList(args)
	deleteData := false
	if v, ok := args.GetByName("delete-local-data"); ok {
		deleteData, _ = v.Bool()
	}
	for _, t := range torrents {
		id := s.torrentID(t)
		if id < 0 {
			continue
		}
		if err := s.RemoveTorrent(id, deleteData); err != nil {
			fail(reply, err.Error())
			return
		}
	}
	ok(reply, variant.Null())
}

func (s *Session) rpcTorrentSetLocation(args variant.Value, reply func(string, variant.Value)) {
	lv, ok := args.GetByName("location")
	location, _ := lv.Str()
	if !ok || location == "" || !filepath.IsAbs(location) {
		fail(reply, "new location path is not absolute")
		return
	}
	move := false
	if v, ok2 := args.GetByName("move"); ok2 {
		move, _ = v.Bool()
	}
	torrents, _, _ := s.idList(args)
	for _, t := range torrents {
		t.apply(func(tt *torrent) {
			if move {
				os.Rename(tt.downloadDir, location)
			}
			tt.downloadDir = location
		})
	}
	ok(reply, variant.Null())
}

// rpcTorrentRenamePath renames one file or directory within a torrent's
// layout; since this touches disk it is asynchronous like the other I/O
// handlers, even though the rename itself is typically fast.
func (s *Session) rpcTorrentRenamePath(args variant.Value, reply func(string, variant.Value)) {
	torrents, _, _ := s.idList(args)
	if len(torrents) != 1 {
		fail(reply, "torrent-rename-path requires exactly one torrent id")
		return
	}
	pv, _ := args.GetByName("path")
	nv, _ := args.GetByName("name")
	oldRel, _ := pv.Str()
	newName, _ := nv.Str()
	if oldRel == "" || newName == "" {
		fail(reply, "path and name are required")
		return
	}
	t := torrents[0]
	completion := rpc.NewCompletion(reply)
	go func() {
		dir := t.downloadDir
		oldPath := filepath.Join(dir, oldRel)
		newPath := filepath.Join(filepath.Dir(oldPath), newName)
		if err := os.Rename(oldPath, newPath); err != nil {
			completion.Complete(err.Error(), variant.Null())
			return
		}
		b := variant.NewBuilder()
		b.Put("path", oldRel)
		b.Put("name", newName)
		b.Put("id", s.torrentID(t))
		completion.Complete("success", b.Value())
	}()
}

// ---- queue ----

type queueDirection int

const (
	queueTop queueDirection = iota
	queueUp
	queueDown
	queueBottom
)

func (s *Session) rpcQueueMove(dir queueDirection) rpc.Handler {
	return func(args variant.Value, reply func(string, variant.Value)) {
		torrents, _, _ := s.idList(args)
		all := s.Torrents()
		for _, t := range torrents {
			t.apply(func(tt *torrent) {
				switch dir {
				case queueTop:
					tt.queuePosition = -1
				case queueBottom:
					tt.queuePosition = int64(len(all))
				case queueUp:
					tt.queuePosition--
				case queueDown:
					tt.queuePosition++
				}
			})
		}
		ok(reply, variant.Null())
	}
}

// ---- groups ----

func (s *Session) rpcGroupGet(args variant.Value, reply func(string, variant.Value)) {
	s.mGroups.Lock()
	defer s.mGroups.Unlock()
	vec := variant.NewVector(len(s.groups))
	for name, g := range s.groups {
		e := variant.NewMap()
		e.SetByName("name", variant.String(name))
		e.SetByName("honorsSessionLimits", variant.Bool(g.HonorsSessionLimit))
		e.SetByName("speed-limit-down", variant.Int(g.SpeedLimitDown))
		e.SetByName("speed-limit-down-enabled", variant.Bool(g.SpeedLimitDownOn))
		e.SetByName("speed-limit-up", variant.Int(g.SpeedLimitUp))
		e.SetByName("speed-limit-up-enabled", variant.Bool(g.SpeedLimitUpOn))
		vec.Append(e)
	}
	b := variant.NewBuilder()
	b.PutValue(quark.Intern("group"), vec)
	ok(reply, b.Value())
}

func (s *Session) rpcGroupSet(args variant.Value, reply func(string, variant.Value)) {
	nv, ok := args.GetByName("name")
	name, _ := nv.Str()
	if !ok || name == "" {
		fail(reply, "group name is required")
		return
	}
	s.mGroups.Lock()
	g, exists := s.groups[name]
	if !exists {
		g = &BandwidthGroup{Name: name}
		s.groups[name] = g
	}
	if v, ok2 := args.GetByName("honorsSessionLimits"); ok2 {
		g.HonorsSessionLimit, _ = v.Bool()
	}
	if v, ok2 := args.GetByName("speed-limit-down"); ok2 {
		g.SpeedLimitDown, _ = v.Int()
	}
	if v, ok2 := args.GetByName("speed-limit-down-enabled"); ok2 {
		g.SpeedLimitDownOn, _ = v.Bool()
	}
	if v, ok2 := args.GetByName("speed-limit-up"); ok2 {
		g.SpeedLimitUp, _ = v.Int()
	}
	if v, ok2 := args.GetByName("speed-limit-up-enabled"); ok2 {
		g.SpeedLimitUpOn, _ = v.Bool()
	}
	s.mGroups.Unlock()
	ok(reply, variant.Null())
}

// ---- session-level ----

func (s *Session) rpcSessionGet(args variant.Value, reply func(string, variant.Value)) {
	b := variant.NewBuilder()
	b.Put("download-dir", s.config.DataDir)
	b.Put("incomplete-dir", s.config.IncompleteDir)
	b.Put("incomplete-dir-enabled", s.config.IncompleteDirEnabled)
	b.Put("peer-port", int64(s.config.PortBegin))
	b.Put("dht-enabled", s.config.DHTEnabled)
	b.Put("lpd-enabled", s.config.LPDEnabled)
	b.Put("utp-enabled", s.config.UTPEnabled)
	b.Put("pex-enabled", s.config.PEXEnabled)
	b.Put("port-forwarding-enabled", s.config.PortForwardingEnabled)
	b.Put("seedRatioLimit", s.config.SeedRatioLimit)
	b.Put("seedRatioLimited", s.config.SeedRatioLimited)
	b.Put("speed-limit-down-enabled", false)
	b.Put("speed-limit-up-enabled", false)
	b.Put("rpc-version", int64(17))
	b.Put("rpc-version-minimum", int64(1))
	b.Put("version", "Transmission/4.0")
	ok(reply, b.Value())
}

func (s *Session) rpcSessionSet(args variant.Value, reply func(string, variant.Value)) {
	if v, ok := args.GetByName("download-dir"); ok {
		if dir, ok2 := v.Str(); ok2 {
			if !filepath.IsAbs(dir) {
				fail(reply, "download directory path is not absolute")
				return
			}
			s.config.DataDir = dir
		}
	}
	if v, ok := args.GetByName("seedRatioLimit"); ok {
		s.config.SeedRatioLimit, _ = v.Double()
	}
	if v, ok := args.GetByName("seedRatioLimited"); ok {
		s.config.SeedRatioLimited, _ = v.Bool()
	}
	if v, ok := args.GetByName("dht-enabled"); ok {
		s.config.DHTEnabled, _ = v.Bool()
	}
	ok(reply, variant.Null())
}

func (s *Session) rpcSessionStats(args variant.Value, reply func(string, variant.Value)) {
	torrents := s.Torrents()
	b := variant.NewBuilder()
	b.Put("torrentCount", int64(len(torrents)))
	var active, paused int64
	var down, up int64
	for _, t := range torrents {
		req := statsRequest{Response: make(chan Stats, 1)}
		t.statsCommandC <- req
		st := <-req.Response
		if st.Status == Stopped {
			paused++
		} else {
			active++
		}
		down += st.DownloadSpeed
		up += st.UploadSpeed
	}
	b.Put("activeTorrentCount", active)
	b.Put("pausedTorrentCount", paused)
	b.Put("downloadSpeed", down)
	b.Put("uploadSpeed", up)
	b.Put("uptime", int64(s.Uptime().Seconds()))
	ok(reply, b.Value())
}

// rpcSessionClose shuts the daemon down; the reply is delivered before
// Close tears down the listening sockets and torrents so the RPC caller
// sees the response.
func (s *Session) rpcSessionClose(args variant.Value, reply func(string, variant.Value)) {
	ok(reply, variant.Null())
	go s.Close()
}

func (s *Session) rpcFreeSpace(args variant.Value, reply func(string, variant.Value)) {
	pv, ok := args.GetByName("path")
	path, _ := pv.Str()
	if !ok || path == "" {
		path = s.config.DataDir
	}
	free, total, err := freeSpace(path)
	if err != nil {
		fail(reply, err.Error())
		return
	}
	b := variant.NewBuilder()
	b.Put("path", path)
	b.PutValue(quark.SizeBytes, variant.Int(free))
	b.PutValue(quark.TotalSizeFreeSpace, variant.Int(total))
	ok(reply, b.Value())
}

func (s *Session) rpcPortTest(args variant.Value, reply func(string, variant.Value)) {
	completion := rpc.NewCompletion(reply)
	port := s.config.PortBegin
	url := fmt.Sprintf("%s%d", s.config.PortTestURL, port)
	client := &http.Client{Timeout: s.config.PortTestTimeout}
	go func() {
		resp, err := client.Get(url)
		if err != nil {
			completion.Complete(err.Error(), variant.Null())
			return
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		open := strings.TrimSpace(string(data)) == "1"
		b := variant.NewBuilder()
		b.Put("port-is-open", open)
		completion.Complete("success", b.Value())
	}()
}

func (s *Session) rpcBlocklistUpdate(args variant.Value, reply func(string, variant.Value)) {
	completion := rpc.NewCompletion(reply)
	url := s.config.BlocklistURL
	go func() {
		if url == "" {
			completion.Complete("no blocklist URL configured", variant.Null())
			return
		}
		resp, err := http.Get(url)
		if err != nil {
			completion.Complete(err.Error(), variant.Null())
			return
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			completion.Complete(err.Error(), variant.Null())
			return
		}
		n, err := s.blocklist.Load(data)
		if err != nil {
			completion.Complete(err.Error(), variant.Null())
			return
		}
		b := variant.NewBuilder()
		b.Put("blocklist-size", int64(n))
		completion.Complete("success", b.Value())
	}()
}
