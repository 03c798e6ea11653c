// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package mapview runs interactive map sessions.
//
// A Session owns the whole pipeline for one connected client: viewport,
// debounced bounds fetches, markers, clusters, districts and selection. All
// of that state is touched only by the session goroutine, which consumes one
// inbox of inputs (view changes, fetch results, realtime changes, clicks,
// filter changes) and emits a Frame after every state change.
//
// Fetch results and realtime changes arrive on the same inbox in whatever
// order they happen to be produced. Whichever is applied last wins: a
// location inserted by a realtime event can be dropped by a fetch result
// that was computed before the insert committed. This is accepted; the next
// fetch or change converges the view.
package mapview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/kampai/internal/cluster"
	"github.com/tomtom215/kampai/internal/debounce"
	"github.com/tomtom215/kampai/internal/geo"
	"github.com/tomtom215/kampai/internal/locations"
	"github.com/tomtom215/kampai/internal/logging"
	"github.com/tomtom215/kampai/internal/markers"
	"github.com/tomtom215/kampai/internal/metrics"
	"github.com/tomtom215/kampai/internal/models"
	"github.com/tomtom215/kampai/internal/realtime"
	"github.com/tomtom215/kampai/internal/selection"
	"github.com/tomtom215/kampai/internal/viewport"
)

// User-visible messages.
const (
	MsgFetchFailed    = "Could not load locations for this area. Try searching again."
	MsgDistrictFailed = "Could not load districts for this area."
	MsgFatal          = "The map stopped unexpectedly. Please reload the page."
)

// ErrSessionClosed is returned by input methods after Close.
var ErrSessionClosed = errors.New("map session closed")

// Subscriber opens realtime subscriptions. *realtime.Feed implements it.
type Subscriber interface {
	Subscribe(ctx context.Context, f realtime.Filter) (*realtime.Subscription, error)
}

// Config tunes a session.
type Config struct {
	Width         int
	Height        int
	FetchDelay    time.Duration
	FetchTimeout  time.Duration
	DistrictDelay time.Duration
	// UserID is empty for anonymous sessions, which cannot drop a
	// new-location pin.
	UserID    string
	Clusterer *cluster.Clusterer
}

// inputs
type (
	viewMsg struct {
		center geo.Coordinate
		bounds *geo.BoundingBox
		zoom   float64
		width  int
		height int
	}
	searchMsg        struct{}
	fetchStartedMsg  struct{ gen uint64 }
	fetchResultMsg   struct{ res FetchResult }
	changeMsg        struct{ change realtime.Change }
	markerClickMsg   struct{ id string }
	clusterClickMsg  struct{ id string }
	mapClickMsg      struct{ at geo.Coordinate }
	filterMsg        struct{ category geo.Category }
	districtsMsg     struct{ on bool }
	districtClickMsg struct{ district string }
	districtResult   struct {
		gen      uint64
		clusters []models.DistrictCluster
		fetched  bool
		err      error
	}
	clearSelectionMsg struct{}
)

// Session is one client's map.
type Session struct {
	id   string
	cfg  Config
	sink func(Frame)
	svc  *locations.Service
	feed Subscriber

	inbox     chan any
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
	started   bool

	// Owned by the session goroutine.
	tracker       *viewport.Tracker
	viewSub       viewport.Subscription
	fetcher       *BoundsFetcher
	districts     *locations.DistrictFetcher
	districtTimer *debounce.Timer
	scene         *SceneRenderer
	markers       *markers.Manager
	clusterer     *cluster.Clusterer
	layer         *cluster.Layer
	selection     *selection.Handler
	selSub        selection.Subscription
	sub           *realtime.Subscription

	current       []models.Location
	category      geo.Category
	loading       bool
	resultGen     uint64
	errMsg        string
	showSearch    bool
	searched      *geo.BoundingBox
	camera        *Camera
	showDistricts bool
	districtPins  []*markers.Marker
	seq           uint64

	// districtGen numbers district fetches; only the newest is applied.
	// Bumped from the district timer's goroutine.
	districtGen atomic.Uint64
}

// NewSession builds a session that writes frames to sink. sink is called
// only from the session goroutine and must not block. feed may be nil.
func NewSession(ctx context.Context, svc *locations.Service, feed Subscriber, cfg Config, sink func(Frame)) *Session {
	if cfg.Width <= 0 {
		cfg.Width = 1024
	}
	if cfg.Height <= 0 {
		cfg.Height = 768
	}
	if cfg.DistrictDelay <= 0 {
		cfg.DistrictDelay = DefaultFetchDelay
	}
	if cfg.Clusterer == nil {
		cfg.Clusterer = cluster.New()
	}

	id := logging.GenerateSessionID()
	ctx = logging.ContextWithSessionID(ctx, id)
	ctx, cancel := context.WithCancel(ctx)

	s := &Session{
		id:        id,
		cfg:       cfg,
		sink:      sink,
		svc:       svc,
		feed:      feed,
		inbox:     make(chan any, 64),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		tracker:   viewport.NewTracker(cfg.Width, cfg.Height),
		districts: locations.NewDistrictFetcher(svc),
		scene:     NewSceneRenderer(),
		clusterer: cfg.Clusterer,
		selection: selection.NewHandler(cfg.Clusterer),
	}
	s.districtTimer = debounce.New(cfg.DistrictDelay)
	s.markers = markers.NewManager(s.scene, s.onMarkerClick)
	s.layer = cluster.NewLayer(cfg.Clusterer, s.scene)
	s.fetcher = NewBoundsFetcher(ctx, svc, FetcherConfig{
		Delay:   cfg.FetchDelay,
		Timeout: cfg.FetchTimeout,
		// OnStart may run on the session goroutine (Trigger), so it must
		// not block on the inbox.
		OnStart: func(gen uint64, _ geo.BoundingBox) {
			go func() { _ = s.send(fetchStartedMsg{gen: gen}) }()
		},
		OnResult: func(r FetchResult) {
			_ = s.send(fetchResultMsg{res: r})
		},
	})
	s.viewSub = s.tracker.Subscribe(s.onViewChanged)
	s.selSub = s.selection.Subscribe(func(sel selection.Selection) {
		logging.Ctx(s.ctx).Debug().
			Int("locations", len(sel.Locations)).
			Str("district", sel.District).
			Msg("Selection changed")
	})
	return s
}

// ID returns the session id used in logs.
func (s *Session) ID() string {
	return s.id
}

// Done is closed once the session goroutine has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Start subscribes to location changes, starts the session goroutine and
// fires the first fetch for the initial view.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		s.started = true
		metrics.MapSessionsActive.Inc()
		if s.feed != nil {
			sub, err := s.feed.Subscribe(s.ctx, realtime.Filter{Table: realtime.TableLocations})
			if err != nil {
				logging.Ctx(s.ctx).Warn().Err(err).Msg("Map session running without realtime updates")
			} else {
				s.sub = sub
				go s.pumpChanges(sub)
			}
		}
		go s.run()
		_ = s.send(searchMsg{})
	})
}

// Close cancels pending fetches and subscriptions and waits for the session
// goroutine. No frame is emitted after Close returns.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		// Blocks a concurrent Start until it finishes, and stops a later one.
		s.startOnce.Do(func() {})
		if s.started {
			<-s.done
			return
		}
		s.fetcher.Cancel()
		s.districtTimer.Stop()
		close(s.done)
	})
}

func (s *Session) send(msg any) error {
	select {
	case <-s.ctx.Done():
		return ErrSessionClosed
	default:
	}
	select {
	case s.inbox <- msg:
		return nil
	case <-s.ctx.Done():
		return ErrSessionClosed
	}
}

// SetView reports a camera move by center and zoom.
func (s *Session) SetView(center geo.Coordinate, zoom float64, width, height int) error {
	return s.send(viewMsg{center: center, zoom: zoom, width: width, height: height})
}

// SetBounds reports a camera move by explicit bounds.
func (s *Session) SetBounds(b geo.BoundingBox, zoom float64) error {
	return s.send(viewMsg{bounds: &b, zoom: zoom})
}

// SearchArea fetches the current bounds immediately.
func (s *Session) SearchArea() error {
	return s.send(searchMsg{})
}

// SetFilter changes the category filter; empty shows every category.
func (s *Session) SetFilter(c geo.Category) error {
	if c != "" && !c.Valid() {
		return fmt.Errorf("unknown category %q", c)
	}
	return s.send(filterMsg{category: c})
}

// ClickMarker handles a click on a location marker.
func (s *Session) ClickMarker(id string) error {
	return s.send(markerClickMsg{id: id})
}

// ClickCluster handles a click on a cluster pin.
func (s *Session) ClickCluster(id string) error {
	return s.send(clusterClickMsg{id: id})
}

// ClickMap handles a click on empty map space.
func (s *Session) ClickMap(at geo.Coordinate) error {
	if err := at.Validate(); err != nil {
		return err
	}
	return s.send(mapClickMsg{at: at})
}

// ShowDistricts toggles the district layer.
func (s *Session) ShowDistricts(on bool) error {
	return s.send(districtsMsg{on: on})
}

// ClickDistrict handles a click on a district pin.
func (s *Session) ClickDistrict(district string) error {
	return s.send(districtClickMsg{district: district})
}

// ClearSelection closes the info panel and removes the pending pin.
func (s *Session) ClearSelection() error {
	return s.send(clearSelectionMsg{})
}

func (s *Session) pumpChanges(sub *realtime.Subscription) {
	for c := range sub.C {
		if s.send(changeMsg{change: c}) != nil {
			return
		}
	}
}

func (s *Session) run() {
	defer close(s.done)
	defer func() {
		if r := recover(); r != nil {
			logging.Ctx(s.ctx).Error().
				Interface("panic", r).
				Msg("Map session panicked")
			s.seq++
			s.sink(Frame{Seq: s.seq, Type: FrameFatal, Error: MsgFatal})
			s.cancel()
			s.teardown()
		}
	}()

	s.emit()
	for {
		select {
		case <-s.ctx.Done():
			s.teardown()
			return
		case msg := <-s.inbox:
			if s.ctx.Err() != nil {
				s.teardown()
				return
			}
			if s.reduce(msg) {
				s.emit()
			}
		}
	}
}

func (s *Session) teardown() {
	s.fetcher.Cancel()
	s.districtTimer.Stop()
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	s.tracker.Unsubscribe(s.viewSub)
	s.selection.Unsubscribe(s.selSub)
	s.layer.Clear()
	s.markers.Clear()
	s.markers.ClearPending()
	metrics.MapSessionsActive.Dec()
	logging.Ctx(s.ctx).Debug().Msg("Map session closed")
}

// reduce applies one input and reports whether a frame should be emitted.
func (s *Session) reduce(msg any) bool {
	switch m := msg.(type) {
	case viewMsg:
		var err error
		if m.bounds != nil {
			_, err = s.tracker.SetBounds(*m.bounds, m.zoom)
		} else {
			_, err = s.tracker.SetView(m.center, m.zoom, m.width, m.height)
		}
		if err != nil {
			logging.Ctx(s.ctx).Debug().Err(err).Msg("Rejected view")
			return false
		}
		return true

	case searchMsg:
		s.showSearch = false
		s.fetcher.Trigger(s.tracker.Bounds(), s.category)
		return false

	case fetchStartedMsg:
		// The start notice can arrive after its own result.
		if !s.fetcher.IsCurrent(m.gen) || m.gen <= s.resultGen {
			return false
		}
		s.loading = true
		return true

	case fetchResultMsg:
		return s.applyFetch(m.res)

	case changeMsg:
		return s.applyChange(m.change)

	case markerClickMsg:
		if err := s.markers.Click(m.id); err != nil {
			logging.Ctx(s.ctx).Debug().Err(err).Msg("Click on unknown marker")
			return false
		}
		return true

	case clusterClickMsg:
		c, ok := s.layer.Get(m.id)
		if !ok {
			return false
		}
		s.markers.ClearPending()
		v := s.tracker.View()
		act, _ := s.selection.ClickCluster(c, v.Zoom, v.Width, v.Height)
		if act.Kind == cluster.ActionZoom {
			fit := act.Bounds
			s.camera = &Camera{Center: act.Center, Zoom: act.Zoom, Fit: &fit}
		}
		return true

	case mapClickMsg:
		if s.cfg.UserID == "" {
			return false
		}
		if _, err := s.markers.SetPending(m.at); err != nil {
			return false
		}
		s.selection.SelectPosition(m.at)
		return true

	case filterMsg:
		if m.category == s.category {
			return false
		}
		s.category = m.category
		s.fetcher.Trigger(s.tracker.Bounds(), s.category)
		return true

	case districtsMsg:
		return s.toggleDistricts(m.on)

	case districtResult:
		return s.applyDistricts(m)

	case districtClickMsg:
		for _, pin := range s.districtPins {
			if pin.Title == m.district {
				pin.Click()
				return true
			}
		}
		return false

	case clearSelectionMsg:
		s.markers.ClearPending()
		s.selection.Clear()
		return true
	}
	return false
}

// onViewChanged runs inside tracker.SetView/SetBounds on the session
// goroutine.
func (s *Session) onViewChanged(v viewport.View) {
	s.layer.Render(s.markers.Markers(), v.Zoom)
	s.fetcher.Request(v.Bounds, s.category)
	if s.searched != nil && !s.searched.Contains(v.Center) {
		s.showSearch = true
	}
	if s.showDistricts {
		s.scheduleDistricts(v.Bounds)
	}
}

func (s *Session) applyFetch(r FetchResult) bool {
	// A newer fetch may have fired after this result was queued.
	if !s.fetcher.IsCurrent(r.Generation) {
		metrics.BoundsFetchesTotal.WithLabelValues("stale").Inc()
		return false
	}
	s.loading = false
	s.resultGen = r.Generation
	if r.Err != nil {
		logging.Ctx(s.ctx).Warn().Err(r.Err).Str("bounds", r.Bounds.String()).Msg("Bounds fetch failed")
		s.errMsg = MsgFetchFailed
		return true
	}
	s.errMsg = ""
	b := r.Bounds
	s.searched = &b
	s.showSearch = false
	s.current = r.Locations
	s.render()
	return true
}

func (s *Session) applyChange(c realtime.Change) bool {
	if c.Table != realtime.TableLocations {
		return false
	}

	switch c.Type {
	case realtime.EventInsert, realtime.EventUpdate:
		var loc models.Location
		if err := c.Decode(&loc); err != nil || loc.ID == "" {
			logging.Ctx(s.ctx).Warn().Err(err).Msg("Ignoring undecodable location change")
			return false
		}
		idx := s.indexOf(loc.ID)
		visible := loc.Category.Valid() &&
			loc.Coordinate().Valid() &&
			s.tracker.Bounds().Contains(loc.Coordinate()) &&
			(s.category == "" || loc.Category == s.category)
		switch {
		case visible && idx >= 0:
			s.current[idx] = loc
		case visible:
			s.current = append([]models.Location{loc}, s.current...)
		case idx >= 0:
			s.removeAt(idx)
		default:
			return false
		}

	case realtime.EventDelete:
		id, ok := c.Field("id")
		if !ok {
			return false
		}
		idx := s.indexOf(id)
		if idx < 0 {
			return false
		}
		s.removeAt(idx)

	default:
		return false
	}

	s.render()
	live := make(map[string]bool, len(s.current))
	for _, l := range s.current {
		live[l.ID] = true
	}
	s.selection.Prune(live)
	return true
}

func (s *Session) indexOf(id string) int {
	for i, l := range s.current {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) removeAt(i int) {
	next := make([]models.Location, 0, len(s.current)-1)
	next = append(next, s.current[:i]...)
	s.current = append(next, s.current[i+1:]...)
}

func (s *Session) render() {
	ms := s.markers.Apply(s.current)
	s.layer.Render(ms, s.tracker.Zoom())
}

func (s *Session) onMarkerClick(loc models.Location) {
	s.selection.SelectMarker(loc, s.markers.Locations())
}

func (s *Session) toggleDistricts(on bool) bool {
	if on == s.showDistricts {
		return false
	}
	s.showDistricts = on
	if !on {
		s.districtTimer.Cancel()
		s.clearDistrictPins()
		return true
	}
	s.districts.Reset()
	b := s.tracker.Bounds()
	s.districtTimer.Start(func() { s.fetchDistricts(b) })
	s.districtTimer.Flush()
	return false
}

func (s *Session) scheduleDistricts(b geo.BoundingBox) {
	s.districtTimer.Start(func() { s.fetchDistricts(b) })
}

// fetchDistricts is called by the district timer.
func (s *Session) fetchDistricts(b geo.BoundingBox) {
	gen := s.districtGen.Add(1)
	go func() {
		clusters, fetched, err := s.districts.Fetch(s.ctx, b)
		_ = s.send(districtResult{gen: gen, clusters: clusters, fetched: fetched, err: err})
	}()
}

func (s *Session) applyDistricts(r districtResult) bool {
	if !s.showDistricts || r.gen != s.districtGen.Load() {
		return false
	}
	if r.err != nil {
		logging.Ctx(s.ctx).Warn().Err(r.err).Msg("District fetch failed")
		s.errMsg = MsgDistrictFailed
		return true
	}
	if !r.fetched {
		return false
	}
	s.clearDistrictPins()
	for _, c := range r.clusters {
		pin := markers.NewDistrictMarker(c, s.onDistrictClick)
		s.scene.AttachMarker(pin)
		s.districtPins = append(s.districtPins, pin)
	}
	return true
}

func (s *Session) clearDistrictPins() {
	for _, pin := range s.districtPins {
		s.scene.DetachMarker(pin)
	}
	s.districtPins = nil
}

func (s *Session) onDistrictClick(c models.DistrictCluster) {
	s.markers.ClearPending()
	s.selection.SelectDistrict(c.District)
	s.camera = &Camera{
		Center: geo.Coordinate{Lat: c.Latitude, Lon: c.Longitude},
		Zoom:   locations.DistrictZoom,
	}
}

func (s *Session) emit() {
	pins, districts, clusters := s.scene.snapshot()
	s.seq++
	f := Frame{
		Seq:         s.seq,
		Type:        FrameState,
		View:        s.tracker.View(),
		Filter:      s.category,
		Markers:     pins,
		Clusters:    clusters,
		Districts:   districts,
		Selection:   s.selection.Current(),
		Loading:     s.loading,
		Error:       s.errMsg,
		ShowSearch:  s.showSearch,
		Camera:      s.camera,
		MarkerCount: s.markers.Count(),
		Searched:    s.searched,
	}
	s.camera = nil
	metrics.MarkersRendered.Observe(float64(len(pins)))
	s.sink(f)
}
