/*
Package client implements the request/response correlator of rws.

An RPCClient sits on top of a reconnecting client transport (see package
transport) and turns the unstructured text frames of the transport into
envelopes:

	{"id": "...", "subject": "...", "data": ..., "error": "..."}

# Requests

Send and SendEnvelope register a Call under the request's identifier before
the frame is handed to the transport. If the transport is not connected the
frame is queued and flushed on the next connection, the call keeps waiting.
Exactly one of Call.Response and Call.Error fires when the correlated reply
arrives. A non-null "error" field selects the error branch. Calls end locally
with ErrTimeout (per-call timeout, default ClientConfig.TimeoutMs), ErrCanceled
(Call.Cancel), ErrQueueFull (the transport's bounded queue rejected the
request) or ErrDestroyed (RPCClient.Destroy).

	call, err := c.Send("Ping", map[string]any{})
	if err != nil {
		return err
	}
	data, err := call.Wait(ctx)

# Subscriptions

Every decoded envelope is also broadcast to the subscribers of its subject,
regardless of whether it resolved a call. On delivers every envelope of
the subject, OnError only the ones carrying an error. The feeds use
github.com/cskr/pubsub topics. Each subscription buffers without bound, so a
slow reader never loses envelopes and never blocks the others.

# Decoding

A frame whose trimmed text does not start with "{", that cannot be parsed,
or has no subject is dropped, logged at error level and counted in
rws_client_decode_errors_total.
*/
package client
