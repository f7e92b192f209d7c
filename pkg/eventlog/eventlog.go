// Package eventlog implements the append-only event log facade (spec
// §4.5 "Event Log"). Sequence numbers are allocated at append time by
// reading and rewriting the run's sequence counter key in one
// transaction; the read-set check at commit turns a concurrent append
// into a conflict that Retry re-runs. Grounded on the teacher's pattern
// of routing every mutation through
// one transactional commit path (pkg/storage/engine.go's Put/Del).
package eventlog

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/agentdb/core/pkg/dberrors"
	"github.com/agentdb/core/pkg/keyspace"
	"github.com/agentdb/core/pkg/mvstore"
	"github.com/agentdb/core/pkg/txn"
	"github.com/agentdb/core/pkg/values"
)

// Event is one immutable, sequence-numbered log entry.
type Event struct {
	Seq       uint64
	Type      string
	Payload   values.Value
	Hash      []byte // this event's chain hash
	PrevHash  []byte // the previous event's chain hash (nil for seq 1)
	TimestampUs int64
}

// Log is a stateless facade over a txn.Manager.
type Log struct {
	mgr *txn.Manager
}

func New(mgr *txn.Manager) *Log { return &Log{mgr: mgr} }

func seqCounterKey(runID string) []byte {
	return keyspace.Build(runID, keyspace.TagEvent, keyspace.ReservedPrefix+"seq")
}

func tailHashKey(runID string) []byte {
	return keyspace.Build(runID, keyspace.TagEvent, keyspace.ReservedPrefix+"tail_hash")
}

func eventKey(runID string, seq uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq) // big-endian so byte order == numeric order
	return keyspace.Build(runID, keyspace.TagEvent, "e/"+string(b[:]))
}

func eventsPrefix(runID string) []byte {
	return keyspace.Build(runID, keyspace.TagEvent, "e/")
}

// chainHash computes this event's tamper-evident hash: SHA-256 over
// length-prefixed prior_hash || event_type || payload (spec §9 open
// question, resolved in SPEC_FULL.md §E.2). No pack repo specializes in
// hash chaining, so this is a deliberate, narrow use of crypto/sha256.
func chainHash(prevHash []byte, eventType string, payload []byte) []byte {
	h := sha256.New()
	writeLenPrefixed(h, prevHash)
	writeLenPrefixed(h, []byte(eventType))
	writeLenPrefixed(h, payload)
	return h.Sum(nil)
}

func writeLenPrefixed(h interface{ Write([]byte) (int, error) }, b []byte) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(b)))
	h.Write(lenBuf[:])
	h.Write(b)
}

// Append adds a new event to runID's log, allocating its sequence
// number and chain hash atomically under the transaction manager's
// commit lock (spec §5 "Within a run, event log order matches commit
// order"). Retries automatically on conflict: the sequence counter and
// tail hash are a single hot key per run, so append-heavy workloads see
// serialized (not parallel) commits for this primitive by design.
func (l *Log) Append(runID, eventType string, payload values.Value) (uint64, error) {
	var seq uint64
	payloadBytes := values.Encode(payload)

	_, err := txn.Retry(l.mgr, txn.DefaultRetryOptions(), func(t *txn.Txn) error {
		seqKey := seqCounterKey(runID)
		hashKey := tailHashKey(runID)

		raw, ok, err := t.Get(seqKey)
		if err != nil {
			return err
		}
		var prevSeq uint64
		if ok {
			prevSeq = binary.BigEndian.Uint64(raw)
		}
		seq = prevSeq + 1

		var prevHash []byte
		rawHash, ok, err := t.Get(hashKey)
		if err != nil {
			return err
		}
		if ok {
			prevHash = rawHash
		}

		hash := chainHash(prevHash, eventType, payloadBytes)

		var seqBuf [8]byte
		binary.BigEndian.PutUint64(seqBuf[:], seq)
		if err := t.Put(seqKey, seqBuf[:], 0); err != nil {
			return err
		}
		if err := t.Put(hashKey, hash, 0); err != nil {
			return err
		}

		env := encodeEnvelope(eventType, payloadBytes, hash, prevHash)
		return t.Put(eventKey(runID, seq), env, 0)
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// Read fetches a single event by sequence number.
func (l *Log) Read(runID string, seq uint64) (Event, bool, error) {
	t := l.mgr.Begin()
	defer t.Rollback()

	raw, ok, err := t.Get(eventKey(runID, seq))
	if err != nil || !ok {
		return Event{}, false, err
	}
	ev, err := decodeEnvelope(raw)
	if err != nil {
		return Event{}, false, err
	}
	ev.Seq = seq
	return ev, true, nil
}

// ReadByType returns every event of the given type in insertion
// (sequence) order.
func (l *Log) ReadByType(runID, eventType string) ([]Event, error) {
	all, err := l.scanAll(runID)
	if err != nil {
		return nil, err
	}
	var out []Event
	for _, ev := range all {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out, nil
}

// Len returns the number of events appended to runID's log.
func (l *Log) Len(runID string) (uint64, error) {
	t := l.mgr.Begin()
	defer t.Rollback()
	raw, ok, err := t.Get(seqCounterKey(runID))
	if err != nil || !ok {
		return 0, err
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (l *Log) scanAll(runID string) ([]Event, error) {
	t := l.mgr.Begin()
	defer t.Rollback()

	prefix := eventsPrefix(runID)
	var events []Event
	var scanErr error
	t.Store().ScanPrefix(prefix, t.Watermark(), t.NowMicros(), func(flatKey []byte, e mvstore.Entry) bool {
		ev, err := decodeEnvelope(e.Value)
		if err != nil {
			scanErr = err
			return false
		}
		userKey := flatKey[len(prefix):]
		if len(userKey) != 8 {
			return true
		}
		ev.Seq = binary.BigEndian.Uint64(userKey)
		events = append(events, ev)
		return true
	})
	if scanErr != nil {
		return nil, scanErr
	}
	return events, nil
}

// envelope encoding: [u8 type_len][type][u32 payload_len][payload]
// [u8 hash_len][hash][u8 prev_hash_len][prev_hash]. Hand-rolled,
// length-prefixed, matching the teacher's own encoding style elsewhere
// in this module (pkg/durability's encodeOps).
func encodeEnvelope(eventType string, payload, hash, prevHash []byte) []byte {
	buf := make([]byte, 0, 1+len(eventType)+4+len(payload)+1+len(hash)+1+len(prevHash))
	buf = append(buf, byte(len(eventType)))
	buf = append(buf, eventType...)
	var plen [4]byte
	binary.BigEndian.PutUint32(plen[:], uint32(len(payload)))
	buf = append(buf, plen[:]...)
	buf = append(buf, payload...)
	buf = append(buf, byte(len(hash)))
	buf = append(buf, hash...)
	buf = append(buf, byte(len(prevHash)))
	buf = append(buf, prevHash...)
	return buf
}

func decodeEnvelope(data []byte) (Event, error) {
	if len(data) < 1 {
		return Event{}, dberrors.Internal("eventlog: truncated envelope")
	}
	typeLen := int(data[0])
	data = data[1:]
	if len(data) < typeLen+4 {
		return Event{}, dberrors.Internal("eventlog: truncated type")
	}
	eventType := string(data[:typeLen])
	data = data[typeLen:]

	payloadLen := int(binary.BigEndian.Uint32(data[:4]))
	data = data[4:]
	if len(data) < payloadLen+1 {
		return Event{}, dberrors.Internal("eventlog: truncated payload")
	}
	payloadBytes := data[:payloadLen]
	data = data[payloadLen:]

	payload, err := values.Decode(payloadBytes)
	if err != nil {
		return Event{}, err
	}

	hashLen := int(data[0])
	data = data[1:]
	if len(data) < hashLen+1 {
		return Event{}, dberrors.Internal("eventlog: truncated hash")
	}
	hash := append([]byte(nil), data[:hashLen]...)
	data = data[hashLen:]

	prevHashLen := int(data[0])
	data = data[1:]
	if len(data) < prevHashLen {
		return Event{}, dberrors.Internal("eventlog: truncated prev hash")
	}
	prevHash := append([]byte(nil), data[:prevHashLen]...)

	return Event{Type: eventType, Payload: payload, Hash: hash, PrevHash: prevHash}, nil
}
