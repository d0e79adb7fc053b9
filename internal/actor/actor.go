// Package actor implements the daemon's event-loop actor (spec §4.1): the
// single goroutine that owns the session store, subscriber registry, and
// cached usage datum. Every mutation is caused by a message dequeued from
// a single inbound channel; nothing outside this goroutine touches that
// state. This mirrors the teacher's single-writer discipline around
// internal/ws.Broadcaster, but trades the teacher's mutex for a channel
// since there is exactly one mutator here, not many readers.
package actor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pablolion/acd/internal/broadcast"
	"github.com/pablolion/acd/internal/config"
	"github.com/pablolion/acd/internal/proto"
	"github.com/pablolion/acd/internal/session"
	"github.com/pablolion/acd/internal/usage"
)

// TickInterval is the actor's coarse periodic tick (spec: "≥1s").
const TickInterval = 1 * time.Second

// InboundCapacity bounds the actor's inbound command channel (spec §5:
// "default 1024").
const InboundCapacity = 1024

// PingInterval is the keepalive period for subscribers (spec §5: "ping
// every 30s"). Nothing references it: no keepalive ping is sent to
// subscribers.
const PingInterval = 30 * time.Second

// Message is one unit of work posted to the actor, always carrying a Reply
// channel the caller (a connection's reader goroutine) blocks on.
type Message struct {
	Kind       Kind
	ConnID     string
	SetCmd     proto.SetCmd
	RemoveCmd  proto.RemoveCmd
	ReopenCmd  proto.ReopenCmd
	StopCmd    proto.StopCmd
	Subscriber *broadcast.Subscriber
	Reply      chan Result
}

// Kind tags a Message's operation.
type Kind int

const (
	KindSet Kind = iota
	KindRemove
	KindReopen
	KindList
	KindSubscribe
	KindUnsubscribe
	KindPing
	KindStatus
	KindReload
	KindStop
	KindUsageFetched
	KindUsageFailed
)

// Result is posted back on Message.Reply.
type Result struct {
	Envelope interface{} // one of the proto.*Reply / proto.*Msg types
	Err      error
}

// usageFetchedMsg and usageFailedMsg carry fetch results back into the
// actor loop via the same inbound channel, so cache updates stay
// single-threaded with everything else (spec §4.6).
type usageFetchedMsg struct {
	datum usage.Datum
}

type usageFailedMsg struct {
	err error
}

// Actor is the event-loop core.
type Actor struct {
	store     *session.Store
	reg       *broadcast.Registry
	inbound   chan Message
	usageIn   chan interface{}
	cfg       *config.Config
	cfgPath   string
	fetcher   usage.Fetcher
	backoff   *usage.BackoffSchedule
	log       *logrus.Logger
	startedAt time.Time
	pid       int

	cachedUsage      *usage.Datum
	lastUsageFetch   time.Time
	lastUsageAttempt time.Time
	usageInFlight    bool

	idleSince    time.Time
	hasBeenIdle  bool
	shuttingDown bool

	subConns map[string]string // subscriber id -> conn id, for Status counts only
}

// New constructs an Actor. fetcher may be nil when usage fetching is
// disabled (e.g. tests).
func New(cfg *config.Config, cfgPath string, fetcher usage.Fetcher, log *logrus.Logger, pid int) *Actor {
	return &Actor{
		store:     session.NewStore(cfg.Daemon.ClosedRingSize, cfg.Daemon.InactiveThreshold.AsDuration()),
		reg:       broadcast.NewRegistry(),
		inbound:   make(chan Message, InboundCapacity),
		usageIn:   make(chan interface{}, 8),
		cfg:       cfg,
		cfgPath:   cfgPath,
		fetcher:   fetcher,
		backoff:   usage.NewBackoffSchedule(cfg.Daemon.UsageFetchInterval.AsDuration()),
		log:       log,
		startedAt: time.Now(),
		pid:       pid,
		idleSince: time.Now(),
		subConns:  make(map[string]string),
	}
}

// Inbound returns the channel connection handlers post Messages to.
func (a *Actor) Inbound() chan<- Message { return a.inbound }

// ShutdownReason names why the actor stopped. Run does not fill one in; it
// returns the reason as a plain string.
type ShutdownReason struct {
	Reason string
}

// Run drives the event loop until a shutdown condition is reached or ctx
// is cancelled. It returns the shutdown reason string (proto.ShutdownReason*).
func (a *Actor) Run(ctx context.Context) string {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return proto.ShutdownReasonSignal

		case msg := <-a.inbound:
			if reason, stop := a.handle(msg); stop {
				return reason
			}

		case raw := <-a.usageIn:
			a.handleUsageResult(raw)

		case <-ticker.C:
			if reason, stop := a.tick(); stop {
				return reason
			}
		}
	}
}

func (a *Actor) handle(msg Message) (reason string, stop bool) {
	switch msg.Kind {
	case KindSet:
		a.handleSet(msg)
	case KindRemove:
		a.handleRemove(msg)
	case KindReopen:
		a.handleReopen(msg)
	case KindList:
		a.handleList(msg)
	case KindSubscribe:
		a.handleSubscribe(msg)
	case KindUnsubscribe:
		a.handleUnsubscribe(msg)
	case KindPing:
		msg.Reply <- Result{Envelope: proto.PongMsg{Version: proto.Version, Type: proto.TypePong}}
	case KindStatus:
		a.handleStatus(msg)
	case KindReload:
		a.handleReload(msg)
	case KindStop:
		a.handleStop(msg)
		return proto.ShutdownReasonCommand, true
	}
	return "", false
}

func (a *Actor) handleSet(msg Message) {
	cmd := msg.SetCmd
	status, ok := session.ParseStatus(cmd.Status)
	if !ok {
		msg.Reply <- Result{Envelope: proto.ErrReply{
			Version: proto.Version, Type: proto.TypeErr,
			Kind: proto.ErrKindInvalidField, Message: "invalid status: " + cmd.Status,
		}}
		return
	}

	now := time.Now()
	wasEmpty := a.store.LiveCount() == 0

	s, _ := a.store.Upsert(cmd.SessionID, now, func(s *session.Session, revived bool) {
		if cmd.WorkingDir != "" {
			s.WorkingDir = session.TruncateWorkingDir(cmd.WorkingDir)
			if s.DisplayName == "" || revived {
				s.DisplayName = session.DisplayNameFromWorkingDir(s.WorkingDir)
			}
		}
		if cmd.DisplayName != "" {
			s.DisplayName = session.TruncateDisplayName(cmd.DisplayName)
		}
		if cmd.Priority != nil {
			s.Priority = *cmd.Priority
		}
		if cmd.AgentType != "" {
			s.AgentType = session.AgentType(cmd.AgentType)
		} else if s.AgentType == "" {
			s.AgentType = session.ClaudeCode
		}
		s.SetStatus(status, now)
	})
	if status == session.Closed {
		a.store.Close(s.ID)
	}

	msg.Reply <- Result{Envelope: proto.OkReply{Version: proto.Version, Type: proto.TypeOk}}

	snap := s.ToSnapshot(now)
	if status == session.Closed {
		a.broadcastAll(proto.ClosedMsg{Version: proto.Version, Type: proto.TypeClosed, Session: snap})
	} else {
		a.broadcastAll(proto.UpdateMsg{Version: proto.Version, Type: proto.TypeUpdate, Session: snap})
	}

	if wasEmpty && a.store.LiveCount() > 0 {
		a.resetIdle()
	}
}

func (a *Actor) handleRemove(msg Message) {
	if !a.store.Remove(msg.RemoveCmd.SessionID) {
		msg.Reply <- Result{Envelope: proto.ErrReply{
			Version: proto.Version, Type: proto.TypeErr,
			Kind: proto.ErrKindNotFound, Message: "no such session: " + msg.RemoveCmd.SessionID,
		}}
		return
	}
	msg.Reply <- Result{Envelope: proto.OkReply{Version: proto.Version, Type: proto.TypeOk}}
	a.broadcastAll(proto.RemovedMsg{Version: proto.Version, Type: proto.TypeRemoved, SessionID: msg.RemoveCmd.SessionID})
}

func (a *Actor) handleReopen(msg Message) {
	status := session.Attention
	if msg.ReopenCmd.Status != "" {
		parsed, ok := session.ParseStatus(msg.ReopenCmd.Status)
		if !ok {
			msg.Reply <- Result{Envelope: proto.ErrReply{
				Version: proto.Version, Type: proto.TypeErr,
				Kind: proto.ErrKindInvalidField, Message: "invalid status: " + msg.ReopenCmd.Status,
			}}
			return
		}
		status = parsed
	}

	now := time.Now()
	s := a.store.Reopen(msg.ReopenCmd.SessionID, status, now)
	if s == nil {
		msg.Reply <- Result{Envelope: proto.ErrReply{
			Version: proto.Version, Type: proto.TypeErr,
			Kind: proto.ErrKindNotFound, Message: "not in closed ring: " + msg.ReopenCmd.SessionID,
		}}
		return
	}
	snap := s.ToSnapshot(now)
	msg.Reply <- Result{Envelope: proto.OkSessionReply{Version: proto.Version, Type: proto.TypeOk, Session: snap}}
	a.broadcastAll(proto.ReopenedMsg{Version: proto.Version, Type: proto.TypeReopened, Session: snap})
	a.resetIdle()
}

func (a *Actor) handleList(msg Message) {
	now := time.Now()
	live, closed := a.store.SortedSnapshot(now)
	msg.Reply <- Result{Envelope: a.snapshotMsg(live, closed)}
}

func (a *Actor) handleSubscribe(msg Message) {
	a.reg.Add(msg.Subscriber)
	a.subConns[msg.Subscriber.ID] = msg.ConnID
	a.resetIdle()

	now := time.Now()
	live, closed := a.store.SortedSnapshot(now)
	frame, err := json.Marshal(a.snapshotMsg(live, closed))
	if err != nil {
		msg.Reply <- Result{Err: err}
		return
	}
	a.reg.Send(msg.Subscriber.ID, broadcast.Frame(frame))
	msg.Reply <- Result{Envelope: proto.OkReply{Version: proto.Version, Type: proto.TypeOk}}
}

func (a *Actor) handleUnsubscribe(msg Message) {
	a.reg.Remove(msg.Subscriber.ID)
	delete(a.subConns, msg.Subscriber.ID)
	if msg.Reply != nil {
		msg.Reply <- Result{}
	}
}

func (a *Actor) handleStatus(msg Message) {
	msg.Reply <- Result{Envelope: proto.HealthMsg{
		Version:         proto.Version,
		Type:            proto.TypeHealth,
		PID:             a.pid,
		UptimeSecs:      int64(time.Since(a.startedAt) / time.Second),
		LiveCount:       a.store.LiveCount(),
		ClosedCount:     a.store.ClosedCount(),
		SubscriberCount: a.reg.Count(),
		MemoryBytes:     memoryBytes(a.pid),
		GoVersion:       goVersion(),
		StartTime:       a.startedAt.Format(time.RFC3339),
	}}
}

func (a *Actor) handleReload(msg Message) {
	next, warnings, err := config.Load(a.cfgPath)
	if err != nil {
		msg.Reply <- Result{Envelope: proto.ReloadFailedMsg{Version: proto.Version, Type: proto.TypeReloadFailed, Reason: err.Error()}}
		a.broadcastAll(proto.ReloadFailedMsg{Version: proto.Version, Type: proto.TypeReloadFailed, Reason: err.Error()})
		return
	}
	for _, w := range warnings {
		a.log.Warn(w)
	}
	changes := config.Diff(a.cfg, next)
	a.cfg = next
	a.store.SetIdleThreshold(next.Daemon.InactiveThreshold.AsDuration())
	a.store.SetRingSize(next.Daemon.ClosedRingSize)
	if lvl, err := logrus.ParseLevel(next.Daemon.LogLevel); err == nil {
		a.log.SetLevel(lvl)
	}

	msg.Reply <- Result{Envelope: proto.OkReply{Version: proto.Version, Type: proto.TypeOk}}
	a.broadcastAll(proto.ConfigReloadedMsg{Version: proto.Version, Type: proto.TypeConfigReloaded, Changes: changes})
}

func (a *Actor) handleStop(msg Message) {
	a.shuttingDown = true
	msg.Reply <- Result{Envelope: proto.OkReply{Version: proto.Version, Type: proto.TypeOk}}
	a.broadcastAll(proto.ShutdownMsg{Version: proto.Version, Type: proto.TypeShutdown, Reason: proto.ShutdownReasonCommand})
}

func (a *Actor) handleUsageResult(raw interface{}) {
	a.usageInFlight = false
	switch v := raw.(type) {
	case usageFetchedMsg:
		a.backoff.RecordSuccess()
		a.lastUsageFetch = time.Now()
		a.cachedUsage = &v.datum
		a.broadcastAll(proto.UsageUpdatedMsg{
			Version: proto.Version, Type: proto.TypeUsageUpdated,
			Datum: toUsagePayload(v.datum),
		})
	case usageFailedMsg:
		a.backoff.RecordFailure()
		staleness := int64(0)
		if !a.lastUsageFetch.IsZero() {
			staleness = int64(time.Since(a.lastUsageFetch) / time.Second)
		}
		a.log.WithError(v.err).Warn("usage fetch failed")
		a.broadcastAll(proto.UsageErrorMsg{
			Version: proto.Version, Type: proto.TypeUsageError,
			Kind: "fetch_failed", StalenessSecs: staleness,
		})
	}
}

func (a *Actor) tick() (reason string, stop bool) {
	now := time.Now()
	a.store.EvictHistories(now)

	if a.store.LiveCount() > 0 || a.reg.Count() > 0 {
		a.resetIdle()
	} else if now.Sub(a.idleSince) >= a.cfg.Daemon.IdleTimeout.AsDuration() {
		a.broadcastAll(proto.ShutdownMsg{Version: proto.Version, Type: proto.TypeShutdown, Reason: proto.ShutdownReasonAutoStop})
		return proto.ShutdownReasonAutoStop, true
	}

	if a.reg.Count() > 0 && a.fetcher != nil && !a.usageInFlight {
		due := a.lastUsageAttempt.IsZero() || now.Sub(a.lastUsageAttempt) >= a.backoff.Next()
		if due {
			a.usageInFlight = true
			a.lastUsageAttempt = now
			go a.runFetch()
		}
	}

	return "", false
}

func (a *Actor) runFetch() {
	ctx, cancel := context.WithTimeout(context.Background(), usage.FetchTimeout)
	defer cancel()
	datum, err := a.fetcher.Fetch(ctx)
	if err != nil {
		a.usageIn <- usageFailedMsg{err: err}
		return
	}
	a.usageIn <- usageFetchedMsg{datum: datum}
}

func (a *Actor) resetIdle() {
	a.idleSince = time.Now()
}

func (a *Actor) broadcastAll(v interface{}) {
	frame, err := json.Marshal(v)
	if err != nil {
		a.log.WithError(err).Error("marshal broadcast frame")
		if _, isErrorMsg := v.(proto.ErrorMsg); !isErrorMsg {
			a.broadcastAll(proto.ErrorMsg{
				Version: proto.Version,
				Type:    proto.TypeError,
				Kind:    "internal",
				Message: "failed to prepare an update for broadcast",
			})
		}
		return
	}
	overflowed := a.reg.Broadcast(broadcast.Frame(frame))
	for _, id := range overflowed {
		a.reg.ForceSend(id, mustMarshalShutdown(proto.ShutdownReasonOverflow))
		a.reg.Remove(id)
		delete(a.subConns, id)
	}
}

func mustMarshalShutdown(reason string) broadcast.Frame {
	b, _ := json.Marshal(proto.ShutdownMsg{Version: proto.Version, Type: proto.TypeShutdown, Reason: reason})
	return broadcast.Frame(b)
}

func (a *Actor) snapshotMsg(live, closed []session.Snapshot) proto.SnapshotMsg {
	var usagePayload *proto.UsagePayload
	if a.cachedUsage != nil {
		p := toUsagePayload(*a.cachedUsage)
		usagePayload = &p
	}
	return proto.SnapshotMsg{
		Version:  proto.Version,
		Type:     proto.TypeSnapshot,
		Sessions: live,
		Closed:   closed,
		Usage:    usagePayload,
		Server: proto.ServerInfo{
			Version:    proto.Version,
			PID:        a.pid,
			UptimeSecs: int64(time.Since(a.startedAt) / time.Second),
		},
	}
}

func toUsagePayload(d usage.Datum) proto.UsagePayload {
	periods := make([]proto.UsagePeriod, 0, len(d.Periods))
	for _, p := range d.Periods {
		periods = append(periods, proto.UsagePeriod{
			Label:          p.Label,
			UtilizationPct: p.UtilizationPct,
			ResetsAt:       p.ResetsAt.Unix(),
		})
	}
	return proto.UsagePayload{Periods: periods}
}
