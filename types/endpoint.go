package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Endpoint identifies the domain a desktop request addresses.
// Values are part of the wire contract and must not be renumbered.
type Endpoint int

// Endpoint ids.
const (
	EndpointInvalid Endpoint = iota
	EndpointDeviceInfo
	EndpointUpdate
	EndpointFilesystem
	EndpointBackup
	EndpointRestore
	EndpointFactory
	EndpointContacts
	EndpointMessages
	EndpointCalllog
	EndpointCalendarEvents
	EndpointDeveloperMode
	EndpointBluetooth
	EndpointUSBSecurity
)

var endpointNames = map[Endpoint]string{
	EndpointInvalid:        "invalid",
	EndpointDeviceInfo:     "deviceInfo",
	EndpointUpdate:         "update",
	EndpointFilesystem:     "filesystem",
	EndpointBackup:         "backup",
	EndpointRestore:        "restore",
	EndpointFactory:        "factory",
	EndpointContacts:       "contacts",
	EndpointMessages:       "messages",
	EndpointCalllog:        "calllog",
	EndpointCalendarEvents: "calendarEvents",
	EndpointDeveloperMode:  "developerMode",
	EndpointBluetooth:      "bluetooth",
	EndpointUSBSecurity:    "usbSecurity",
}

func (e Endpoint) String() string {
	if name, ok := endpointNames[e]; ok {
		return name
	}
	return fmt.Sprintf("endpoint(%d)", int(e))
}

// Valid reports whether e is a known, addressable endpoint id.
func (e Endpoint) Valid() bool {
	return e > EndpointInvalid && e <= EndpointUSBSecurity
}

// ParseEndpoint accepts an endpoint name, case-insensitively, or its id.
func ParseEndpoint(s string) (Endpoint, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if e := Endpoint(n); e.Valid() {
			return e, nil
		}
		return EndpointInvalid, fmt.Errorf("unknown endpoint id %d", n)
	}
	for e, name := range endpointNames {
		if e.Valid() && strings.EqualFold(name, s) {
			return e, nil
		}
	}
	return EndpointInvalid, fmt.Errorf("unknown endpoint %q", s)
}

// Method is the HTTP-style verb of a request.
type Method int

// Method values. Zero is not a valid method.
const (
	MethodGet Method = iota + 1
	MethodPost
	MethodPut
	MethodDel
)

func (m Method) String() string {
	switch m {
	case MethodGet:
		return "get"
	case MethodPost:
		return "post"
	case MethodPut:
		return "put"
	case MethodDel:
		return "del"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// ParseMethod accepts get, post, put or del, case-insensitively, or a
// method number.
func ParseMethod(s string) (Method, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if m := Method(n); m.Valid() {
			return m, nil
		}
		return 0, fmt.Errorf("unknown method %d", n)
	}
	for m := MethodGet; m <= MethodDel; m++ {
		if strings.EqualFold(m.String(), s) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown method %q", s)
}

// Valid reports whether m is one of the four supported methods.
func (m Method) Valid() bool {
	return m >= MethodGet && m <= MethodDel
}

// Status is the HTTP-style status code carried by a response envelope.
type Status int

// Status codes used by the endpoints.
const (
	StatusOK                  Status = 200
	StatusAccepted            Status = 202
	StatusNoContent           Status = 204
	StatusBadRequest          Status = 400
	StatusForbidden           Status = 403
	StatusNotFound            Status = 404
	StatusNotAcceptable       Status = 406
	StatusConflict            Status = 409
	StatusLocked              Status = 423
	StatusInternalServerError Status = 500
	StatusNotImplemented      Status = 501
	StatusServiceUnavailable  Status = 503
	StatusInsufficientStorage Status = 507
)

// IsSuccess reports whether s is a 2xx status.
func (s Status) IsSuccess() bool {
	return s >= 200 && s < 300
}
