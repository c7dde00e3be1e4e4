package session

import "time"

// Record is one API call as recorded by the engine when history is enabled.
// Arguments are stored with the password redacted.
type Record struct {
	Time   time.Time
	Path   string
	Method string
	Args   map[string]any
	Status string
}

// history collects call records. Only the owning session appends, so no
// locking; snapshots are copied out.
type history struct {
	records []Record
}

func (h *history) append(path, method string, args map[string]any, status string) {
	h.records = append(h.records, Record{
		Time:   time.Now(),
		Path:   path,
		Method: method,
		Args:   redactArgs(args),
		Status: status,
	})
}

// History returns a copy of the call records made through this session, in
// order. Nil when history was not enabled in the config.
func (s *Session) History() []Record {
	if s.hist == nil {
		return nil
	}
	out := make([]Record, len(s.hist.records))
	copy(out, s.hist.records)
	return out
}
