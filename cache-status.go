package offlinecache

import "fmt"

type cacheStatusStatus string

const (
	cacheStatusHit cacheStatusStatus = "hit"
	cacheStatusFwd cacheStatusStatus = "fwd"
)

type fwdReason string

const (
	// The worker was configured to not handle this request.
	fwdReasonBypass fwdReason = "bypass"

	// The request method's semantics require the request to be forwarded.
	fwdReasonMethod fwdReason = "method"

	// The cache did not contain a response matching the request key.
	fwdReasonMiss fwdReason = "miss"

	// The strategy prefers fresh content over a stored response.
	fwdReasonRequest fwdReason = "request"
)

// cacheStatus renders the Cache-Status response header.
type cacheStatus struct {
	status    cacheStatusStatus
	fwdReason fwdReason
	detail    string
}

func (cs *cacheStatus) hit() {
	cs.status = cacheStatusHit
}

func (cs *cacheStatus) forward(reason fwdReason) {
	cs.status = cacheStatusFwd
	cs.fwdReason = reason
}

func (cs cacheStatus) String() string {
	status := fmt.Sprintf("Offline-Cache; %s", cs.status)
	if cs.status == cacheStatusFwd && cs.fwdReason != "" {
		status = fmt.Sprintf("%s=%s", status, cs.fwdReason)
	}
	if cs.detail != "" {
		status = status + "; detail=" + cs.detail
	}
	return status
}
