package protocol

import "github.com/kan-bayashi/svt/internal/geom"

// KgpState tracks the last successfully displayed placement: the area it
// occupies and the KGP identifier it was placed under. Invalidate clears
// only the identifier, keeping the area around so a pending erase can still
// target the right rows.
type KgpState struct {
	lastArea  *geom.Rect
	lastKgpID uint32
	hasID     bool
}

// LastArea returns the last placement's area, or nil if none is recorded.
func (s *KgpState) LastArea() *geom.Rect {
	return s.lastArea
}

// LastKgpID returns the last placement's identifier and whether one is set.
func (s *KgpState) LastKgpID() (uint32, bool) {
	return s.lastKgpID, s.hasID
}

// SetLast records a freshly completed placement.
func (s *KgpState) SetLast(area geom.Rect, id uint32) {
	s.lastArea = &area
	s.lastKgpID = id
	s.hasID = true
}

// Invalidate drops the identifier while preserving the area, so a later
// erase still knows what rows to clear.
func (s *KgpState) Invalidate() {
	s.hasID = false
}

// Reset clears both the area and the identifier (used by reload/resize).
func (s *KgpState) Reset() {
	s.lastArea = nil
	s.hasID = false
}
