package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classattend/internal/attendance"
	"classattend/internal/geo"
	"classattend/internal/qr"
)

type startSessionRequest struct {
	UnitCode   string   `json:"unit_code" binding:"required,max=64"`
	RequireGPS *bool    `json:"require_gps"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
}

// StartSession opens a session owned by the calling lecturer.
func (h *Handler) StartSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}
	anchor, ok := point(req.Latitude, req.Longitude)
	if !ok {
		writeError(c, http.StatusBadRequest, "ValidationError", "latitude and longitude must be sent together")
		return
	}

	// an omitted flag keeps the geofence on
	requireGPS := true
	if req.RequireGPS != nil {
		requireGPS = *req.RequireGPS
	}

	s, err := h.registry.Start(c.Request.Context(), attendance.StartRequest{
		UnitCode:   req.UnitCode,
		LecturerID: subject(c),
		RequireGPS: requireGPS,
		Anchor:     anchor,
	})
	if err != nil {
		fail(c, err)
		return
	}
	payload, err := qr.Encode(qr.Payload{SessionID: s.ID, Token: s.Token})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"session_id":  s.ID,
		"unit_code":   s.UnitCode,
		"qr_token":    s.Token,
		"qr_payload":  payload,
		"require_gps": s.RequireGPS,
		"created_at":  s.CreatedAt,
	})
}

// RotateToken replaces the session token; the old one stops verifying.
func (h *Handler) RotateToken(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	tok, err := h.registry.RotateToken(c.Request.Context(), id, subject(c))
	if err != nil {
		fail(c, err)
		return
	}
	payload, err := qr.Encode(qr.Payload{SessionID: id, Token: tok})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "qr_token": tok, "qr_payload": payload})
}

// EndSession closes a session for good.
func (h *Handler) EndSession(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	if err := h.registry.End(c.Request.Context(), id, subject(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "state": attendance.StateEnded})
}

// SessionAttendance lists a session's records for its owner.
func (h *Handler) SessionAttendance(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	s, err := h.registry.Owned(c.Request.Context(), id, subject(c))
	if err != nil {
		fail(c, err)
		return
	}
	records, err := h.verifier.Records(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"session": s, "attendance": records})
}

// LecturerHistory lists the caller's sessions newest first.
func (h *Handler) LecturerHistory(c *gin.Context) {
	sessions, err := h.registry.History(c.Request.Context(), subject(c), limitQuery(c))
	if err != nil {
		fail(c, err)
		return
	}
	if sessions == nil {
		sessions = []attendance.SessionSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// point returns nil when neither coordinate is set and false when only one is.
func point(lat, lon *float64) (*geo.Point, bool) {
	switch {
	case lat == nil && lon == nil:
		return nil, true
	case lat == nil || lon == nil:
		return nil, false
	}
	return &geo.Point{Lat: *lat, Lon: *lon}, true
}
