// Package session provides a BitTorrent client implementation that is
// capable of downloading multiple torrents in parallel, owning the
// torrent registry, the session-wide RPC dispatcher, and the process-wide
// resources (resume database, DHT node, blocklist, tracker manager,
// listening socket) that every torrent's event loop draws on.
package session

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/boltdb/bolt"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/nictuku/dht"

	"github.com/tearfur/transmission/internal/acceptor"
	"github.com/tearfur/transmission/internal/announcer"
	"github.com/tearfur/transmission/internal/bitfield"
	"github.com/tearfur/transmission/internal/blocklist"
	"github.com/tearfur/transmission/internal/config"
	"github.com/tearfur/transmission/internal/handshaker/incominghandshaker"
	"github.com/tearfur/transmission/internal/handshaker/outgoinghandshaker"
	"github.com/tearfur/transmission/internal/logger"
	"github.com/tearfur/transmission/internal/magnet"
	"github.com/tearfur/transmission/internal/metainfo"
	"github.com/tearfur/transmission/internal/resumer"
	"github.com/tearfur/transmission/internal/resumer/boltdbresumer"
	"github.com/tearfur/transmission/internal/rpc"
	"github.com/tearfur/transmission/internal/storage"
	"github.com/tearfur/transmission/internal/storage/filestorage"
	"github.com/tearfur/transmission/internal/tracker"
	"github.com/tearfur/transmission/internal/trackermanager"
	"github.com/tearfur/transmission/internal/transport"
	"github.com/tearfur/transmission/internal/watchdir"
)

var (
	sessionBucket  = []byte("session")
	torrentsBucket = []byte("torrents")
)

// BandwidthGroup is a named cap on upload/download rate that torrents can
// opt into, the RPC group-get/group-set surface's unit of configuration.
type BandwidthGroup struct {
	Name               string
	SpeedLimitDown     int64
	SpeedLimitDownOn   bool
	SpeedLimitUp       int64
	SpeedLimitUpOn     bool
	HonorsSessionLimit bool
}

// removedTorrent records the id/time of a torrent removed via RPC, kept
// for 60s so torrent-get ids:"recently-active" can report it.
type removedTorrent struct {
	id  int64
	at  time.Time
}

// Session owns every torrent, the shared resume database, and the
// process-wide collaborators (DHT node, blocklist, tracker manager,
// peer-accepting socket, watch directory) that torrents draw on.
type Session struct {
	config *config.Config
	db     *bolt.DB
	log    logger.Logger

	dht            *dht.DHT
	blocklist      *blocklist.Blocklist
	trackerManager *trackermanager.TrackerManager
	acceptor       *acceptor.Acceptor
	utpSocket      *transport.UTPSocket
	watcher        *watchdir.WatchDir
	dispatcher     *rpc.Dispatcher

	fetch func(url string) ([]byte, error)

	m              sync.RWMutex
	torrents       map[int64]*torrent
	torrentsByHash map[[20]byte]*torrent
	nextTorrentID  int64
	recentlyRemoved []removedTorrent

	mPorts         sync.Mutex
	availablePorts map[uint16]struct{}

	mGroups sync.Mutex
	groups  map[string]*BandwidthGroup

	mHandshake          sync.Mutex
	incomingHandshakers map[*incominghandshaker.IncomingHandshaker]struct{}
	incomingResultC     chan *incominghandshaker.IncomingHandshaker

	startedAt time.Time
	closeC    chan struct{}
	closeOnce sync.Once
}

// New opens (or creates) the resume database at cfg.Database, starts the
// session's ambient services (DHT, peer acceptor, µTP socket, watch
// directory), creates an empty blocklist, reloads any torrents recorded in the database, and
// registers the RPC method table. Only cfg.PortBegin < cfg.PortEnd is
// validated here; everything else defaults per config.Default.
func New(cfg *config.Config) (*Session, error) {
	if cfg.PortBegin >= cfg.PortEnd {
		return nil, errors.New("invalid port range")
	}
	var err error
	cfg.Database, err = homedir.Expand(cfg.Database)
	if err != nil {
		return nil, err
	}
	cfg.DataDir, err = homedir.Expand(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o750); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, err
	}

	l := logger.New("session")
	db, err := bolt.Open(cfg.Database, 0o640, &bolt.Options{Timeout: time.Second})
	if err == bolt.ErrTimeout {
		return nil, errors.New("resume database is locked by another process")
	} else if err != nil {
		return nil, err
	}
	closeDBOnErr := true
	defer func() {
		if closeDBOnErr {
			db.Close()
		}
	}()

	var ids []string
	err = db.Update(func(tx *bolt.Tx) error {
		b, err2 := tx.CreateBucketIfNotExists(sessionBucket)
		if err2 != nil {
			return err2
		}
		_ = b
		tb, err2 := tx.CreateBucketIfNotExists(torrentsBucket)
		if err2 != nil {
			return err2
		}
		return tb.ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	var dhtNode *dht.DHT
	if cfg.DHTEnabled {
		dhtConfig := dht.NewConfig()
		dhtConfig.Address = cfg.DHTAddress
		dhtConfig.Port = int(cfg.DHTPort)
		dhtConfig.DHTRouters = "router.bittorrent.com:6881,dht.transmissionbt.com:6881,router.utorrent.com:6881,dht.libtorrent.org:25401,dht.aelitis.com:6881"
		dhtConfig.SaveRoutingTable = false
		dhtNode, err = dht.New(dhtConfig)
		if err != nil {
			return nil, err
		}
		if err := dhtNode.Start(); err != nil {
			return nil, err
		}
	}

	ports := make(map[uint16]struct{}, int(cfg.PortEnd-cfg.PortBegin))
	for p := cfg.PortBegin; p < cfg.PortEnd; p++ {
		ports[p] = struct{}{}
	}

	bl := blocklist.New()

	s := &Session{
		config:              cfg,
		db:                  db,
		log:                 l,
		dht:                 dhtNode,
		blocklist:           bl,
		trackerManager:      trackermanager.New(bl),
		fetch:               httpFetch,
		torrents:            make(map[int64]*torrent),
		torrentsByHash:      make(map[[20]byte]*torrent),
		availablePorts:      ports,
		groups:              make(map[string]*BandwidthGroup),
		incomingHandshakers: make(map[*incominghandshaker.IncomingHandshaker]struct{}),
		incomingResultC:     make(chan *incominghandshaker.IncomingHandshaker),
		startedAt:           time.Now(),
		closeC:              make(chan struct{}),
	}

	peerAddr := net.JoinHostPort(cfg.BindAddressIPv4, strconv.Itoa(int(cfg.PortBegin)))
	acc, err := acceptor.New(peerAddr, logger.New("acceptor"))
	if err != nil {
		return nil, err
	}
	s.acceptor = acc

	if cfg.UTPEnabled {
		us, err := transport.ListenUTP(peerAddr)
		if err != nil {
			l.Warningln("cannot start utp socket:", err)
		} else {
			s.utpSocket = us
			go s.utpAcceptLoop()
		}
	}

	go s.acceptLoop()
	go s.handshakeResultLoop()

	if cfg.WatchDirEnabled && cfg.WatchDir != "" {
		wd, err := watchdir.New(cfg.WatchDir, 2*time.Second, logger.New("watchdir"))
		if err != nil {
			l.Warningln("cannot start watch directory:", err)
		} else {
			s.watcher = wd
			go s.watchDirLoop()
		}
	}

	if err := s.loadExistingTorrents(ids); err != nil {
		l.Errorln("error loading existing torrents:", err)
	}

	s.dispatcher = rpc.NewDispatcher()
	s.registerRPC()

	closeDBOnErr = false
	return s, nil
}

func httpFetch(url string) ([]byte, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (s *Session) acceptLoop() {
	for {
		select {
		case conn, ok := <-s.acceptor.NewConns():
			if !ok {
				return
			}
			s.handleAcceptedConn(conn)
		case <-s.closeC:
			return
		}
	}
}

// utpAcceptLoop mirrors acceptLoop for the shared µTP socket. A
// *transport.UTPTransport satisfies net.Conn on its own, so it flows
// through the same plaintext-handshake path as an accepted TCP conn.
func (s *Session) utpAcceptLoop() {
	for {
		conn, err := s.utpSocket.Accept()
		if err != nil {
			select {
			case <-s.closeC:
				return
			default:
				s.log.Debugln("utp accept error:", err)
				return
			}
		}
		select {
		case <-s.closeC:
			conn.Close()
			return
		default:
			s.handleAcceptedConn(conn)
		}
	}
}

// dialFunc returns the outgoing dial function torrents should use to
// open peer connections: the shared µTP socket's Dial when µTP is
// enabled, or nil to fall back to plain TCP.
func (s *Session) dialFunc() outgoinghandshaker.DialFunc {
	if s.utpSocket == nil {
		return nil
	}
	return func(network, addr string, timeout time.Duration) (net.Conn, error) {
		return s.utpSocket.Dial(addr, timeout)
	}
}

// handleAcceptedConn performs the handshake once, centrally, since only
// the session knows every torrent's info hash; the matching torrent is
// resolved only after the plaintext handshake's info hash is known.
func (s *Session) handleAcceptedConn(conn net.Conn) {
	h := incominghandshaker.New(conn)
	s.mHandshake.Lock()
	s.incomingHandshakers[h] = struct{}{}
	s.mHandshake.Unlock()
	var peerID [20]byte
	copy(peerID[:], "-TS0010-sessionhs00")
	go h.Run(peerID, s.knownInfoHashes, s.config.Encryption.Mode, s.incomingResultC, s.config.PeerHandshakeTimeout)
}

func (s *Session) handshakeResultLoop() {
	for {
		select {
		case h := <-s.incomingResultC:
			s.mHandshake.Lock()
			delete(s.incomingHandshakers, h)
			s.mHandshake.Unlock()
			if h.Error != nil {
				h.Conn.Close()
				continue
			}
			t := s.torrentByHash(h.InfoHash)
			if t == nil {
				h.Conn.Close()
				continue
			}
			select {
			case t.incomingPeerC <- incomingPeer{conn: h.Conn, id: h.PeerID, extensions: h.Extensions}:
			case <-s.closeC:
				h.Conn.Close()
			}
		case <-s.closeC:
			return
		}
	}
}

func (s *Session) knownInfoHashes() [][20]byte {
	s.m.RLock()
	defer s.m.RUnlock()
	out := make([][20]byte, 0, len(s.torrentsByHash))
	for ih := range s.torrentsByHash {
		out = append(out, ih)
	}
	return out
}

func (s *Session) watchDirLoop() {
	for {
		select {
		case ev := <-s.watcher.EventsC:
			s.handleWatchEvent(ev)
		case <-s.closeC:
			return
		}
	}
}

func (s *Session) handleWatchEvent(ev watchdir.Event) {
	var err error
	switch {
	case hasSuffix(ev.Path, ".torrent"):
		f, ferr := os.Open(ev.Path)
		if ferr != nil {
			s.log.Warningln("watchdir: cannot open", ev.Path, ferr)
			return
		}
		_, _, err = s.AddTorrentReader(f, addOptions{})
		f.Close()
	case hasSuffix(ev.Path, ".magnet"):
		raw, ferr := os.ReadFile(ev.Path)
		if ferr != nil {
			s.log.Warningln("watchdir: cannot read", ev.Path, ferr)
			return
		}
		_, _, err = s.AddMagnet(string(bytes.TrimSpace(raw)), addOptions{})
	default:
		return
	}
	if err != nil {
		s.log.Warningln("watchdir: cannot add", ev.Path, err)
		return
	}
	os.Rename(ev.Path, ev.Path+".added")
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

func (s *Session) parseTrackers(urls []string) []tracker.Tracker {
	var out []tracker.Tracker
	for _, u := range urls {
		t, err := s.trackerManager.Get(u, s.config.TrackerHTTPTimeout, s.config.TrackerHTTPUserAgent)
		if err != nil {
			s.log.Warningln("cannot parse tracker url:", u, err)
			continue
		}
		out = append(out, t)
	}
	return out
}

// addOptions carries the torrent-add-time overrides an RPC caller may
// supply, applied once the torrent object exists.
type addOptions struct {
	DownloadDir   string
	Paused        bool
	PeerLimit     int
	Labels        []string
	SequentialDL  bool
	BandwidthPrio int64
}

func (s *Session) loadExistingTorrents(ids []string) error {
	var started []*torrent
	for _, idStr := range ids {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			s.log.Errorln("bad torrent id in resume db:", idStr)
			continue
		}
		res, err := boltdbresumer.New(s.db, torrentsBucket, []byte(idStr))
		if err != nil {
			s.log.Error(err)
			continue
		}
		spec, err := res.Read()
		if err != nil || spec == nil {
			if err != nil {
				s.log.Error(err)
			}
			continue
		}
		hasStarted, _ := res.ReadStarted()
		stats, _ := res.ReadStats()

		opt := &newTorrentOptions{
			Name:        spec.Name,
			Port:        spec.Port,
			Trackers:    s.parseTrackers(flattenTiers(spec.Trackers)),
			Resumer:     res,
			Config:      s.config,
			Stats:       stats,
			DownloadDir: spec.Dest,
			Dial:        s.dialFunc(),
		}
		var infoHash [20]byte
		copy(infoHash[:], spec.InfoHash)
		private := false
		if len(spec.Info) > 0 {
			info, err2 := metainfo.NewInfo(spec.Info)
			if err2 != nil {
				s.log.Error(err2)
				continue
			}
			opt.Info = info
			private = info.Private == 1
			if bfBytes, err3 := res.ReadBitfield(); err3 == nil && len(bfBytes) > 0 {
				if bf, err4 := bitfield.NewBytes(bfBytes, info.NumPieces); err4 == nil {
					opt.Bitfield = bf
				}
			}
		}
		if s.config.DHTEnabled && !private {
			opt.DHT = s.newDHTAnnouncer(infoHash)
		}
		var sto *filestorage.FileStorage
		if opt.Info != nil {
			sto, err = filestorage.New(opt.Info, spec.Dest)
		} else {
			sto, err = filestorage.NewEmpty(spec.Dest)
		}
		if err != nil {
			s.log.Error(err)
			continue
		}
		t, err := opt.newTorrent(infoHash, sto)
		if err != nil {
			s.log.Error(err)
			continue
		}
		s.mPorts.Lock()
		delete(s.availablePorts, uint16(spec.Port))
		s.mPorts.Unlock()

		t.queuePosition = int64(len(s.torrents))
		s.registerTorrent(id, t)
		if id >= s.nextTorrentID {
			s.nextTorrentID = id + 1
		}
		go t.run()
		if hasStarted && !s.config.Paused {
			started = append(started, t)
		}
	}
	for _, t := range started {
		t.startCommandC <- struct{}{}
	}
	return nil
}

func flattenTiers(tiers [][]string) []string {
	var out []string
	for _, tier := range tiers {
		out = append(out, tier...)
	}
	return out
}

func (s *Session) newDHTAnnouncer(infoHash [20]byte) *announcer.DHTAnnouncer {
	return announcer.NewDHTAnnouncer(s.dht, infoHash, logger.New("dht"))
}

func (s *Session) registerTorrent(id int64, t *torrent) {
	s.m.Lock()
	defer s.m.Unlock()
	s.torrents[id] = t
	s.torrentsByHash[t.infoHash] = t
}

func (s *Session) torrentByHash(ih [20]byte) *torrent {
	s.m.RLock()
	defer s.m.RUnlock()
	return s.torrentsByHash[ih]
}

func (s *Session) torrentByID(id int64) *torrent {
	s.m.RLock()
	defer s.m.RUnlock()
	return s.torrents[id]
}

// Torrents returns every torrent currently registered, ordered by id.
func (s *Session) Torrents() []*torrent {
	s.m.RLock()
	defer s.m.RUnlock()
	ids := make([]int64, 0, len(s.torrents))
	for id := range s.torrents {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*torrent, len(ids))
	for i, id := range ids {
		out[i] = s.torrents[id]
	}
	return out
}

func (s *Session) getPort() (uint16, error) {
	s.mPorts.Lock()
	defer s.mPorts.Unlock()
	for p := range s.availablePorts {
		delete(s.availablePorts, p)
		return p, nil
	}
	return 0, errors.New("no free peer port available")
}

func (s *Session) releasePort(port uint16) {
	s.mPorts.Lock()
	defer s.mPorts.Unlock()
	s.availablePorts[port] = struct{}{}
}

// allocate reserves a fresh id, port, resume-db bucket, and on-disk
// storage directory for a torrent about to be constructed; AddTorrent*
// callers roll all of it back on any later failure.
func (s *Session) allocate(downloadDir string) (id int64, port uint16, res *boltdbresumer.Resumer, dest string, err error) {
	port, err = s.getPort()
	if err != nil {
		return 0, 0, nil, "", err
	}
	defer func() {
		if err != nil {
			s.releasePort(port)
		}
	}()

	s.m.Lock()
	id = s.nextTorrentID
	s.nextTorrentID++
	s.m.Unlock()

	idStr := strconv.FormatInt(id, 10)
	res, err = boltdbresumer.New(s.db, torrentsBucket, []byte(idStr))
	if err != nil {
		return 0, 0, nil, "", err
	}
	if downloadDir == "" {
		downloadDir = s.config.DataDir
	}
	dest = filepath.Join(downloadDir, idStr)
	return id, port, res, dest, nil
}

// AddTorrentReader adds a torrent from a bencoded metainfo stream (a
// local .torrent file, or the response body of an HTTP(S) URL fetch). It returns (torrent, duplicate, error); duplicate is true when
// the parsed info hash already matches a registered torrent.
func (s *Session) AddTorrentReader(r io.Reader, opts addOptions) (*torrent, bool, error) {
	mi, err := metainfo.New(r)
	if err != nil {
		return nil, false, err
	}
	if existing := s.torrentByHash(mi.Info.Hash); existing != nil {
		return existing, true, nil
	}

	id, port, res, dest, err := s.allocate(opts.DownloadDir)
	if err != nil {
		return nil, false, err
	}
	succeeded := false
	defer func() {
		if !succeeded {
			s.releasePort(port)
		}
	}()

	sto, err := filestorage.New(mi.Info, dest)
	if err != nil {
		return nil, false, err
	}

	trackerURLs := mi.GetTrackers()
	o := &newTorrentOptions{
		Name:        mi.Info.Name,
		Port:        int(port),
		Trackers:    s.parseTrackers(trackerURLs),
		Resumer:     res,
		Config:      s.config,
		Info:        mi.Info,
		DownloadDir: dest,
		Dial:        s.dialFunc(),
	}
	if s.config.DHTEnabled && mi.Info.Private != 1 {
		o.DHT = s.newDHTAnnouncer(mi.Info.Hash)
	}
	t, err := o.newTorrent(mi.Info.Hash, sto)
	if err != nil {
		return nil, false, err
	}
	applyAddOptions(t, opts)

	rspec := &boltdbresumer.Spec{
		InfoHash:  mi.Info.Hash[:],
		Dest:      dest,
		Port:      int(port),
		Name:      o.Name,
		Trackers:  [][]string{trackerURLs},
		Info:      mi.Info.Bytes,
		CreatedAt: t.addedAt.UTC(),
	}
	if err := res.Write(rspec); err != nil {
		return nil, false, err
	}
	if err := res.WriteStarted(!opts.Paused); err != nil {
		return nil, false, err
	}

	s.registerTorrent(id, t)
	succeeded = true
	go t.run()
	if !opts.Paused {
		t.startCommandC <- struct{}{}
	}
	return t, false, nil
}

// AddMagnet adds a torrent from a magnet URI; its metainfo is fetched
// from peers after the first connections are made (DownloadingMetadata
// status) via infodownloader/ut_metadata.
func (s *Session) AddMagnet(link string, opts addOptions) (*torrent, bool, error) {
	ma, err := magnet.New(link)
	if err != nil {
		return nil, false, err
	}
	if existing := s.torrentByHash(ma.InfoHash); existing != nil {
		return existing, true, nil
	}

	id, port, res, dest, err := s.allocate(opts.DownloadDir)
	if err != nil {
		return nil, false, err
	}
	succeeded := false
	defer func() {
		if !succeeded {
			s.releasePort(port)
		}
	}()

	sto, err := filestorage.NewEmpty(dest)
	if err != nil {
		return nil, false, err
	}

	name := ma.Name
	if name == "" {
		name = hexInfoHash(ma.InfoHash)
	}
	o := &newTorrentOptions{
		Name:        name,
		Port:        int(port),
		Trackers:    s.parseTrackers(ma.Trackers),
		Resumer:     res,
		Config:      s.config,
		DownloadDir: dest,
		Dial:        s.dialFunc(),
	}
	if s.config.DHTEnabled {
		o.DHT = s.newDHTAnnouncer(ma.InfoHash)
	}
	t, err := o.newTorrent(ma.InfoHash, sto)
	if err != nil {
		return nil, false, err
	}
	applyAddOptions(t, opts)

	rspec := &boltdbresumer.Spec{
		InfoHash:  ma.InfoHash[:],
		Dest:      dest,
		Port:      int(port),
		Name:      name,
		Trackers:  [][]string{ma.Trackers},
		CreatedAt: t.addedAt.UTC(),
	}
	if err := res.Write(rspec); err != nil {
		return nil, false, err
	}
	if err := res.WriteStarted(!opts.Paused); err != nil {
		return nil, false, err
	}

	s.registerTorrent(id, t)
	succeeded = true
	go t.run()
	if !opts.Paused {
		t.startCommandC <- struct{}{}
	}
	return t, false, nil
}

func applyAddOptions(t *torrent, opts addOptions) {
	if opts.PeerLimit > 0 {
		t.peerLimit = opts.PeerLimit
	}
	if len(opts.Labels) > 0 {
		t.labels = opts.Labels
	}
	if opts.BandwidthPrio != 0 {
		t.bandwidthPriority = opts.BandwidthPrio
	}
	t.sequentialDownload = opts.SequentialDL
	if t.piecePicker != nil {
		t.piecePicker.Sequential = opts.SequentialDL
	}
}

func hexInfoHash(ih [20]byte) string {
	const hex = "0123456789abcdef"
	b := make([]byte, 40)
	for i, c := range ih {
		b[i*2] = hex[c>>4]
		b[i*2+1] = hex[c&0xf]
	}
	return string(b)
}

// RemoveTorrent unregisters id, stopping its event loop and optionally
// deleting its on-disk data.
func (s *Session) RemoveTorrent(id int64, deleteData bool) error {
	s.m.Lock()
	t, ok := s.torrents[id]
	if !ok {
		s.m.Unlock()
		return fmt.Errorf("torrent %d not found", id)
	}
	delete(s.torrents, id)
	delete(s.torrentsByHash, t.infoHash)
	s.recentlyRemoved = append(s.recentlyRemoved, removedTorrent{id: id, at: time.Now()})
	s.m.Unlock()

	doneC := make(chan struct{})
	t.closeC <- doneC
	<-doneC
	s.releasePort(uint16(t.port))

	idStr := strconv.FormatInt(id, 10)
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(torrentsBucket).DeleteBucket([]byte(idStr))
	})
	if err != nil {
		s.log.Errorln("cannot delete resume record:", err)
	}
	if deleteData {
		if fs, ok := t.storage.(*filestorage.FileStorage); ok {
			return os.RemoveAll(fs.Dest())
		}
	}
	return nil
}

// recentlyRemovedSince returns the ids of torrents removed within the
// last 60s, pruning older entries as a side effect.
func (s *Session) recentlyRemovedSince(window time.Duration) []int64 {
	s.m.Lock()
	defer s.m.Unlock()
	cutoff := time.Now().Add(-window)
	kept := s.recentlyRemoved[:0]
	var out []int64
	for _, r := range s.recentlyRemoved {
		if r.at.After(cutoff) {
			kept = append(kept, r)
			out = append(out, r.id)
		}
	}
	s.recentlyRemoved = kept
	return out
}

// Close stops every torrent's event loop (flushing resume state), closes
// the listening sockets, watch directory and DHT node, and closes the
// resume database. URL fetches already in flight are not cancelled. Per the partial-failure rules, a resume
// write failure during shutdown is logged, not propagated: the session
// still exits cleanly.
func (s *Session) Close() error {
	s.closeOnce.Do(func() { close(s.closeC) })

	if s.acceptor != nil {
		s.acceptor.Close()
	}
	if s.utpSocket != nil {
		s.utpSocket.Close()
	}
	if s.watcher != nil {
		s.watcher.Close()
	}
	if s.dht != nil {
		s.dht.Stop()
	}

	var wg sync.WaitGroup
	for _, t := range s.Torrents() {
		wg.Add(1)
		go func(t *torrent) {
			defer wg.Done()
			doneC := make(chan struct{})
			t.closeC <- doneC
			<-doneC
		}(t)
	}
	wg.Wait()

	return s.db.Close()
}

// Uptime reports how long the session has been running, the
// session-stats "uptime" field.
func (s *Session) Uptime() time.Duration { return time.Since(s.startedAt) }

var _ storage.Storage = (*filestorage.FileStorage)(nil)
var _ resumer.Resumer = (*boltdbresumer.Resumer)(nil)
