package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classattend/internal/attendance"
	"classattend/internal/qr"
)

var reasonStatus = map[attendance.Reason]int{
	attendance.ReasonSessionNotFound:    http.StatusNotFound,
	attendance.ReasonSessionNotActive:   http.StatusForbidden,
	attendance.ReasonInvalidToken:       http.StatusForbidden,
	attendance.ReasonAlreadyMarked:      http.StatusConflict,
	attendance.ReasonDeviceAlreadyUsed:  http.StatusConflict,
	attendance.ReasonGpsRequired:        http.StatusBadRequest,
	attendance.ReasonInvalidCoordinates: http.StatusBadRequest,
	attendance.ReasonTooFar:             http.StatusForbidden,
}

var reasonMessage = map[attendance.Reason]string{
	attendance.ReasonSessionNotFound:    "session does not exist",
	attendance.ReasonSessionNotActive:   "session has ended",
	attendance.ReasonInvalidToken:       "qr code is stale or invalid, scan the current code",
	attendance.ReasonAlreadyMarked:      "attendance already recorded",
	attendance.ReasonDeviceAlreadyUsed:  "this device was already used by another student in this session",
	attendance.ReasonGpsRequired:        "location is required for this session",
	attendance.ReasonInvalidCoordinates: "location is not a valid coordinate",
	attendance.ReasonTooFar:             "you are too far from the lecture location",
}

type markRequest struct {
	QR        string   `json:"qr"`
	SessionID int64    `json:"session_id"`
	QRToken   string   `json:"qr_token"`
	DeviceID  string   `json:"device_id" binding:"required,max=256"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// MarkAttendance verifies a scan for the calling student.
func (h *Handler) MarkAttendance(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}
	sessionID, tok := req.SessionID, req.QRToken
	if req.QR != "" {
		p, err := qr.Decode(req.QR)
		if err != nil {
			writeError(c, http.StatusBadRequest, "ValidationError", err.Error())
			return
		}
		sessionID, tok = p.SessionID, p.Token
	}
	loc, ok := point(req.Latitude, req.Longitude)
	if !ok {
		writeError(c, http.StatusBadRequest, "ValidationError", "latitude and longitude must be sent together")
		return
	}

	d, err := h.verifier.Verify(c.Request.Context(), attendance.VerifyRequest{
		SessionID: sessionID,
		Token:     tok,
		StudentID: subject(c),
		DeviceID:  req.DeviceID,
		Location:  loc,
	})
	if err != nil {
		fail(c, err)
		return
	}
	if !d.Accepted() {
		body := gin.H{"error": string(d.Reason), "message": reasonMessage[d.Reason]}
		if d.Reason == attendance.ReasonTooFar {
			body["distance_m"] = d.DistanceMeters()
			body["lecturer_location"] = d.Anchor
		}
		c.AbortWithStatusJSON(reasonStatus[d.Reason], body)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"attendance": d.Record, "distance_m": d.DistanceMeters()})
}

// StudentHistory lists sessions the caller attended, newest first.
func (h *Handler) StudentHistory(c *gin.Context) {
	history, err := h.verifier.History(c.Request.Context(), subject(c), limitQuery(c))
	if err != nil {
		fail(c, err)
		return
	}
	if history == nil {
		history = []attendance.AttendedSession{}
	}
	c.JSON(http.StatusOK, gin.H{"attended": history})
}
