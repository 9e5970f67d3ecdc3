package iothub

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
)

const (
	twinResponseFilter  = "$iothub/twin/res/#"
	twinPatchFilter     = "$iothub/twin/PATCH/properties/desired/#"
	directMethodFilter  = "$iothub/methods/POST/#"
	twinGetTopic        = "$iothub/twin/GET/?$rid=%d"
	twinReportedTopic   = "$iothub/twin/PATCH/properties/reported/?$rid=%d"
	directMethodResTmpl = "$iothub/methods/res/%s/?$rid=%s"
)

// directMethodRegex matches incoming direct-method invocations, e.g.
// "$iothub/methods/POST/reboot/?$rid=1".
var directMethodRegex = regexp.MustCompile(`^\$iothub/methods/POST/([^/]+)/\?\$rid=(.+)$`)

// twinResponseRegex matches a GET/PATCH acknowledgment on the twin response
// topic, e.g. "$iothub/twin/res/200/?$rid=3&$version=7".
var twinResponseRegex = regexp.MustCompile(`^\$iothub/twin/res/(\d+)/\?\$rid=([^&]+)(?:&\$version=(\d+))?$`)

// twinPatchRegex matches a desired-properties PATCH push, e.g.
// "$iothub/twin/PATCH/properties/desired/?$version=4".
var twinPatchRegex = regexp.MustCompile(`^\$iothub/twin/PATCH/properties/desired/\?\$version=(\d+)$`)

func directMethodResponseTopic(status Status, requestID string) string {
	return fmt.Sprintf(directMethodResTmpl, status, requestID)
}

func twinGetRequestTopic(requestID uint8) string {
	return fmt.Sprintf(twinGetTopic, requestID)
}

func twinReportedRequestTopic(requestID uint8) string {
	return fmt.Sprintf(twinReportedTopic, requestID)
}

// directMethodInvocation is a parsed "$iothub/methods/POST/..." topic.
type directMethodInvocation struct {
	Name      string
	RequestID string
}

func parseDirectMethodTopic(topic string) (directMethodInvocation, bool) {
	m := directMethodRegex.FindStringSubmatch(topic)
	if m == nil {
		return directMethodInvocation{}, false
	}
	return directMethodInvocation{Name: m[1], RequestID: m[2]}, true
}

// twinResponse is a parsed "$iothub/twin/res/..." topic.
type twinResponse struct {
	Status    Status
	RequestID string
	// Version is 0 when the response carries no $version segment (this is
	// the case for reported-property acks that have no prior version known
	// yet, though the hub does include it for successful ones too).
	Version    int
	HasVersion bool
}

func parseTwinResponseTopic(topic string) (twinResponse, error) {
	m := twinResponseRegex.FindStringSubmatch(topic)
	if m == nil {
		return twinResponse{}, fmt.Errorf("not a twin response topic: %q", topic)
	}
	status, err := ParseStatus(m[1])
	if err != nil {
		return twinResponse{}, err
	}
	resp := twinResponse{Status: status, RequestID: m[2]}
	if m[3] != "" {
		v, err := strconv.Atoi(m[3])
		if err != nil {
			return twinResponse{}, fmt.Errorf("invalid $version in %q: %w", topic, err)
		}
		resp.Version = v
		resp.HasVersion = true
	}
	return resp, nil
}

func parseTwinPatchTopic(topic string) (version int, ok bool) {
	m := twinPatchRegex.FindStringSubmatch(topic)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return v, true
}

// clientIdentity builds the client ID and username Azure IoT Hub expects for
// a device or a module, per the `/?api-version=` convention (the will topic
// comes from willTopic).
// moduleID is empty for a device-scoped client.
func clientIdentity(hostname, deviceID, moduleID string) (clientID, username string) {
	if moduleID != "" {
		clientID = deviceID + "/" + moduleID
		username = fmt.Sprintf("%s/%s/%s/?api-version=2018-06-30", hostname, deviceID, moduleID)
	} else {
		clientID = deviceID
		username = fmt.Sprintf("%s/%s/?api-version=2018-06-30", hostname, deviceID)
	}
	return clientID, username
}

// willTopic builds the topic a Last Will message is published to, which
// differs for devices and modules.
func willTopic(deviceID, moduleID string) string {
	if moduleID != "" {
		return fmt.Sprintf("devices/%s/modules/%s/messages/events/", deviceID, moduleID)
	}
	return fmt.Sprintf("devices/%s/messages/events/", deviceID)
}

// webSocketURL builds the Azure IoT Hub WebSocket endpoint URL. The hub only
// ever serves this over TLS, hence "wss" rather than "ws".
func webSocketURL(hostname string) string {
	u := url.URL{Scheme: "wss", Host: hostname, Path: "/$iothub/websocket"}
	return u.String()
}
