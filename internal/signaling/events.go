package signaling

// Counter names reported to the metrics registry.
const (
	eventConnOpened          = "ws_conn_opened"
	eventConnClosed          = "ws_conn_closed"
	eventFrameMalformed      = "frame_malformed"
	eventFrameUnknownKind    = "frame_unknown_kind"
	eventPresenceBroadcast   = "presence_broadcast"
	eventBroadcastSendFailed = "broadcast_send_failed"
	eventRelayDelivered      = "relay_delivered"
	eventRelayTargetNotFound = "relay_target_not_found"
	eventRelayNoRoute        = "relay_no_route"
	eventRebindSuperseded    = "rebind_superseded_conn"
)
