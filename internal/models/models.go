// Package models defines the domain models for the PBX bridge
package models

import "time"

// Call directions as reported to the backend API
const (
	DirectionInbound  = "INBOUND"
	DirectionOutbound = "OUTBOUND"
)

// AlertTypeNoAssignedUsers is the only alert type the bridge raises today.
const AlertTypeNoAssignedUsers = "NO_ASSIGNED_USERS"

// CdrRecord is one call segment read from the 3CX CDR store. Records are
// read-only snapshots built once per poll cycle and discarded after forwarding.
type CdrRecord struct {
	ID          int64     `json:"id"`
	CallID      string    `json:"call_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Duration    int       `json:"duration"` // seconds
	PhoneNumber string    `json:"phone_number"`
	Extension   string    `json:"extension"`
	Direction   string    `json:"direction"` // INBOUND or OUTBOUND
	CallGroupID string    `json:"call_group_id,omitempty"`
	Answered    bool      `json:"answered"`
	HangupCause string    `json:"hangup_cause,omitempty"`
}

// PbxCallRequest is the payload for POST /calls/from-pbx. Field names match
// the backend contract; PbxCallID is the backend's idempotency key.
type PbxCallRequest struct {
	PhoneNumber        string `json:"phoneNumber"`
	CallDuration       int    `json:"callDuration"` // seconds
	CallOwnerExtension string `json:"callOwnerExtension"`
	CallOwnerEmail     string `json:"callOwnerEmail"`
	CallDirection      string `json:"callDirection"`
	CallGroupID        string `json:"callGroupId,omitempty"`
	Timestamp          string `json:"timestamp"` // ISO-8601 call end time
	PbxCallID          string `json:"pbxCallId"`
}

// CallEntry is the backend's representation of a created call entry.
type CallEntry struct {
	ID              string  `json:"id"`
	DatatechName    string  `json:"datatechName"`
	DatatechEmail   string  `json:"datatechEmail"`
	StartTime       string  `json:"startTime"`
	EndTime         *string `json:"endTime"`
	IsInbound       *bool   `json:"isInbound"`
	PhoneNumber     string  `json:"phoneNumber,omitempty"`
	PbxCallID       string  `json:"pbxCallId,omitempty"`
	IsPbxOriginated bool    `json:"isPbxOriginated,omitempty"`
	CreatedAt       string  `json:"createdAt"`
	UpdatedAt       string  `json:"updatedAt"`
}

// CallGroupAlertRequest is the payload for POST /alerts/call-groups.
type CallGroupAlertRequest struct {
	CallGroupID   string `json:"callGroupId"`
	CallGroupName string `json:"callGroupName"`
	AlertType     string `json:"alertType"`
	AlertMessage  string `json:"alertMessage"`
}

// CallGroupAlert is the backend's representation of a call group alert.
type CallGroupAlert struct {
	ID            string  `json:"id"`
	CallGroupID   string  `json:"callGroupId"`
	CallGroupName string  `json:"callGroupName"`
	AlertType     string  `json:"alertType"`
	AlertMessage  string  `json:"alertMessage"`
	IsActive      bool    `json:"isActive"`
	CreatedAt     string  `json:"createdAt"`
	ResolvedAt    *string `json:"resolvedAt"`
}

// MonitoredGroup is a ring group watched for missing staffing.
type MonitoredGroup struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// DayWindow is a business-hours window within one weekday, local to the
// configured timezone. Start and End are HH:mm strings; a window never spans
// midnight.
type DayWindow struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}
