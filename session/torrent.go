package session

import (
	"crypto/rand"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"

	"github.com/tearfur/transmission/internal/addrlist"
	"github.com/tearfur/transmission/internal/allocator"
	"github.com/tearfur/transmission/internal/announcer"
	"github.com/tearfur/transmission/internal/bitfield"
	"github.com/tearfur/transmission/internal/blocklist"
	"github.com/tearfur/transmission/internal/config"
	"github.com/tearfur/transmission/internal/handshaker/outgoinghandshaker"
	"github.com/tearfur/transmission/internal/infodownloader"
	"github.com/tearfur/transmission/internal/logger"
	"github.com/tearfur/transmission/internal/metainfo"
	"github.com/tearfur/transmission/internal/peer"
	"github.com/tearfur/transmission/internal/peerconn"
	"github.com/tearfur/transmission/internal/piece"
	"github.com/tearfur/transmission/internal/piececache"
	"github.com/tearfur/transmission/internal/piecedownloader"
	"github.com/tearfur/transmission/internal/piecepicker"
	"github.com/tearfur/transmission/internal/piecewriter"
	"github.com/tearfur/transmission/internal/resumer"
	"github.com/tearfur/transmission/internal/storage"
	"github.com/tearfur/transmission/internal/storage/filestorage"
	"github.com/tearfur/transmission/internal/tracker"
	"github.com/tearfur/transmission/internal/verifier"
)

// ourExtensions is the fast-extension/extension-protocol reserved-byte
// bitfield we advertise in every handshake.
var ourExtensions = bitfield.New(64)

func init() {
	ourExtensions.Set(61) // Fast Extension (BEP 6)
	ourExtensions.Set(43) // Extension Protocol (BEP 10)
}

// Status is a torrent's coarse lifecycle state, the "status" RPC field.
type Status int

const (
	Stopped Status = iota
	DownloadingMetadata
	Allocating
	Verifying
	Downloading
	Seeding
	Stopping
	Error
)

func (s Status) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case DownloadingMetadata:
		return "downloading-metadata"
	case Allocating:
		return "allocating"
	case Verifying:
		return "verifying"
	case Downloading:
		return "downloading"
	case Seeding:
		return "seeding"
	case Stopping:
		return "stopping"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

type peerMessage struct {
	Peer    *peer.Peer
	Message interface{}
}

type pieceMessage struct {
	Peer  *peer.Peer
	Piece peerconn.Piece
}

// pieceDownloaderResult reports a piecedownloader's outcome back into
// the event loop; the downloader's own goroutine sends exactly one of
// these and then exits.
type pieceDownloaderResult struct {
	Peer  *peer.Peer
	Piece *piece.Piece
	Data  []byte
	Err   error
}

// incomingPeer is a connection the session has already carried through
// the handshake and resolved to this torrent by info hash.
type incomingPeer struct {
	conn       net.Conn
	id         [20]byte
	extensions *bitfield.Bitfield
}

type statsRequest struct{ Response chan Stats }
type trackersRequest struct{ Response chan []TrackerStats }
type peersRequest struct{ Response chan []PeerStats }

// torrent owns one swarm's event loop: peer connections, the piece
// picker/downloader set, tracker and DHT announcing, and the on-disk
// verify/allocate/write pipeline, generalizing the teacher's torrent
// struct of the same name to a torrent that may start out info-less
// (a magnet link) and acquire its metainfo.Info mid-flight.
type torrent struct {
	config *config.Config

	infoHash [20]byte
	trackers []tracker.Tracker
	name     string
	storage  storage.Storage
	port     int
	resume   resumer.Resumer

	// dial opens outgoing peer connections. It is nil (plain TCP) unless
	// the session brought up a shared µTP socket (cfg.UTPEnabled).
	dial outgoinghandshaker.DialFunc

	info     *metainfo.Info
	bitfield *bitfield.Bitfield
	peerID   [20]byte

	pieces      []*piece.Piece
	piecePicker *piecepicker.PiecePicker

	peerDisconnectedC chan *peer.Peer
	pieceMessages     chan pieceMessage
	messages          chan peerMessage

	peers         map[*peer.Peer]struct{}
	incomingPeers map[*peer.Peer]struct{}
	outgoingPeers map[*peer.Peer]struct{}

	pieceDownloaders      map[*peer.Peer]*piecedownloader.PieceDownloader
	pieceDownloaderStopC  map[*peer.Peer]chan struct{}
	pieceDownloaderResult chan pieceDownloaderResult
	infoDownloaders       map[*peer.Peer]*infodownloader.InfoDownloader

	pieceWriterResultC chan *piecewriter.PieceWriter

	optimisticUnchokedPeers []*peer.Peer

	completeC chan struct{}
	completed bool

	errC      chan error
	lastError error

	closeC chan chan struct{}

	statsCommandC    chan statsRequest
	trackersCommandC chan trackersRequest
	peersCommandC    chan peersRequest
	startCommandC    chan struct{}
	stopCommandC     chan struct{}
	addPeersCommandC chan []*net.TCPAddr

	// applyC carries synchronous mutations the session's RPC handlers
	// make to torrent state (labels, priority, file wants, tracker
	// list...): one closure run on the event loop instead of one
	// command channel and struct per mutable field.
	applyC chan func(*torrent)

	addrsFromTrackers chan []*net.TCPAddr
	addrList          *addrlist.AddrList

	// incomingPeerC carries connections the session has already taken
	// through the handshake (it owns the single listening socket and
	// must resolve the info hash before it knows which torrent a
	// connection belongs to); by the time one arrives here the peer id
	// and extension bitfield are already known.
	incomingPeerC    chan incomingPeer
	peerIDs          map[[20]byte]struct{}
	connectedPeerIPs map[string]struct{}

	announcers            []*announcer.PeriodicalAnnouncer
	stoppedEventAnnouncer *announcer.StopAnnouncer
	dhtAnnouncer          *announcer.DHTAnnouncer
	dhtPeersC             chan []*net.TCPAddr

	outgoingHandshakers       map[*outgoinghandshaker.OutgoingHandshaker]struct{}
	outgoingHandshakerResultC chan *outgoinghandshaker.OutgoingHandshaker

	infoDownloaderResultC chan *infodownloader.InfoDownloader

	announcerRequestC chan *announcer.Request

	unchokeTimer            *time.Ticker
	unchokeTimerC           <-chan time.Time
	optimisticUnchokeTimer  *time.Ticker
	optimisticUnchokeTimerC <-chan time.Time

	allocator          *allocator.Allocator
	allocatorProgressC chan allocator.Progress
	allocatorResultC   chan *allocator.Result
	bytesAllocated     int64

	verifier          *verifier.Verifier
	verifierProgressC chan verifier.Progress
	verifierResultC   chan *verifier.Result
	checkedPieces     uint32

	resumerStats   resumer.Stats
	seedStartedAt  time.Time
	seededDuration time.Duration

	resumeWriteTimer  *time.Timer
	resumeWriteTimerC <-chan time.Time

	statsWriteTicker  *time.Ticker
	statsWriteTickerC <-chan time.Time

	pieceCache *piececache.Cache
	blocklist  *blocklist.Blocklist

	downloadSpeed       metrics.EWMA
	uploadSpeed         metrics.EWMA
	speedCounterTicker  *time.Ticker
	speedCounterTickerC <-chan time.Time

	sequentialDownload bool
	bandwidthPriority  int64
	labels             []string
	queuePosition      int64
	group              string
	peerLimit          int
	downloadDir        string
	fileWanted         []bool
	filePriority       []int8
	addedAt            time.Time

	piecePool sync.Pool

	log logger.Logger
}

// newTorrentOptions groups everything session.go gathers before it can
// construct a torrent, letting AddTorrentReader/AddMagnet/loadExistingTorrents
// share one constructor.
type newTorrentOptions struct {
	Name     string
	Port     int
	Trackers []tracker.Tracker
	Resumer  resumer.Resumer
	Config   *config.Config

	Info     *metainfo.Info
	Bitfield *bitfield.Bitfield
	Stats    resumer.Stats

	DHT         *announcer.DHTAnnouncer
	DownloadDir string
	Dial        outgoinghandshaker.DialFunc
}

func (o *newTorrentOptions) newTorrent(infoHash [20]byte, sto storage.Storage) (*torrent, error) {
	t := &torrent{
		config:                    o.Config,
		infoHash:                  infoHash,
		trackers:                  o.Trackers,
		name:                      o.Name,
		storage:                   sto,
		port:                      o.Port,
		resume:                    o.Resumer,
		dial:                      o.Dial,
		info:                      o.Info,
		bitfield:                  o.Bitfield,
		resumerStats:              o.Stats,
		dhtAnnouncer:              o.DHT,
		peerDisconnectedC:         make(chan *peer.Peer),
		pieceMessages:             make(chan pieceMessage),
		messages:                  make(chan peerMessage),
		peers:                     make(map[*peer.Peer]struct{}),
		incomingPeers:             make(map[*peer.Peer]struct{}),
		outgoingPeers:             make(map[*peer.Peer]struct{}),
		pieceDownloaders:          make(map[*peer.Peer]*piecedownloader.PieceDownloader),
		pieceDownloaderStopC:      make(map[*peer.Peer]chan struct{}),
		pieceDownloaderResult:     make(chan pieceDownloaderResult),
		infoDownloaders:           make(map[*peer.Peer]*infodownloader.InfoDownloader),
		pieceWriterResultC:        make(chan *piecewriter.PieceWriter),
		completeC:                 make(chan struct{}),
		errC:                      make(chan error, 1),
		closeC:                    make(chan chan struct{}),
		statsCommandC:             make(chan statsRequest),
		trackersCommandC:          make(chan trackersRequest),
		peersCommandC:             make(chan peersRequest),
		startCommandC:             make(chan struct{}),
		stopCommandC:              make(chan struct{}),
		addPeersCommandC:          make(chan []*net.TCPAddr),
		applyC:                    make(chan func(*torrent)),
		addrsFromTrackers:         make(chan []*net.TCPAddr),
		addrList:                  addrlist.New(2000),
		incomingPeerC:             make(chan incomingPeer),
		peerIDs:                   make(map[[20]byte]struct{}),
		connectedPeerIPs:          make(map[string]struct{}),
		outgoingHandshakers:       make(map[*outgoinghandshaker.OutgoingHandshaker]struct{}),
		outgoingHandshakerResultC: make(chan *outgoinghandshaker.OutgoingHandshaker),
		infoDownloaderResultC:     make(chan *infodownloader.InfoDownloader),
		announcerRequestC:         make(chan *announcer.Request),
		allocatorProgressC:        make(chan allocator.Progress),
		allocatorResultC:          make(chan *allocator.Result, 1),
		verifierProgressC:         make(chan verifier.Progress),
		verifierResultC:           make(chan *verifier.Result, 1),
		statsWriteTicker:          time.NewTicker(time.Minute),
		speedCounterTicker:        time.NewTicker(5 * time.Second),
		pieceCache:                piececache.New(sto, int64(o.Config.CacheSizeMB)*1 << 20),
		blocklist:                 nil,
		downloadSpeed:             metrics.NewEWMA1(),
		uploadSpeed:               metrics.NewEWMA1(),
		sequentialDownload:        o.Config.SequentialDownload,
		bandwidthPriority:         0,
		downloadDir:               o.DownloadDir,
		addedAt:                   time.Now(),
		log:                       logger.New("torrent " + o.Name),
	}
	t.statsWriteTickerC = t.statsWriteTicker.C
	t.speedCounterTickerC = t.speedCounterTicker.C
	t.unchokeTimer = time.NewTicker(10 * time.Second)
	t.unchokeTimerC = t.unchokeTimer.C
	t.optimisticUnchokeTimer = time.NewTicker(30 * time.Second)
	t.optimisticUnchokeTimerC = t.optimisticUnchokeTimer.C
	if err := randomPeerID(&t.peerID); err != nil {
		return nil, err
	}
	if t.info != nil {
		if err := t.preparePieces(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *torrent) preparePieces() error {
	if fs, ok := t.storage.(*filestorage.FileStorage); ok {
		if err := fs.Init(t.info); err != nil {
			return err
		}
	}
	t.pieces = make([]*piece.Piece, t.info.NumPieces)
	for i := uint32(0); i < t.info.NumPieces; i++ {
		t.pieces[i] = piece.New(i, t.info.PieceLengthFor(i), t.info.PieceHash(i))
	}
	if t.bitfield == nil {
		t.bitfield = bitfield.New(t.info.NumPieces)
	}
	t.piecePicker = piecepicker.New(t.pieces, t.bitfield)
	t.piecePicker.Sequential = t.sequentialDownload
	if t.fileWanted == nil {
		t.fileWanted = make([]bool, len(t.info.Files))
		t.filePriority = make([]int8, len(t.info.Files))
		for i := range t.fileWanted {
			t.fileWanted[i] = true
		}
	}
	return nil
}

// apply runs fn on the torrent's event loop and waits for it to finish,
// the mechanism every RPC mutation (torrent-set, tracker edits, queue
// moves) uses to touch torrent state without racing the event loop.
func (t *torrent) apply(fn func(*torrent)) {
	done := make(chan struct{})
	t.applyC <- func(tt *torrent) {
		fn(tt)
		close(done)
	}
	<-done
}

func (t *torrent) Name() string { return t.name }

func (t *torrent) InfoHash() []byte {
	b := make([]byte, 20)
	copy(b, t.infoHash[:])
	return b
}

func (t *torrent) run() {
	for {
		if t.runOnce() {
			return
		}
	}
}

var errClosed = errors.New("torrent is closed")

func (t *torrent) closeTorrent() {
	t.stop(errClosed)
	if t.stoppedEventAnnouncer != nil {
		t.stoppedEventAnnouncer.Close()
	}
	t.statsWriteTicker.Stop()
	t.speedCounterTicker.Stop()
	t.unchokeTimer.Stop()
	t.optimisticUnchokeTimer.Stop()
	if t.resumeWriteTimer != nil {
		t.resumeWriteTimer.Stop()
	}
	t.storage.Close()
}

// randomPeerID fills id with our 20-byte peer id: the Azureus-style
// "-XX0000-" client prefix followed by random bytes, the convention the
// teacher's own client uses so trackers and peers can identify us.
func randomPeerID(id *[20]byte) error {
	copy(id[:], "-TS0010-")
	_, err := rand.Read(id[8:])
	return err
}
