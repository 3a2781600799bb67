// Package http exposes the asset lifecycle gateway over HTTP.
//
// # Routes
//
//	POST /asset                    mint an asset id and an upload URL
//	PUT  /asset/{id}               record the asset's status, body {"Status": "..."}
//	GET  /asset/{id}?timeout=60    issue a download URL valid for timeout seconds
//
// Responses are JSON. POST returns {"id", "upload_url"}, GET returns
// {"Download_url"} and PUT returns an empty 200.
//
// # Errors
//
// Every gateway failure (store unreachable, store refusal, asset not
// uploaded) is answered with 500 and a body of the form:
//
//	{
//	  "timestamp": "2026-01-12T07:00:00Z",
//	  "error": "invalid_asset_status",
//	  "message": "Status of asset is not 'uploaded'.",
//	  "details": "uri=/asset/0123..."
//	}
//
// A timeout that is not a positive integer, or a PUT body that is not JSON,
// is rejected with 400 before the gateway is called.
//
// # Usage
//
//	gw, _ := assetgate.NewGateway(store, assetgate.GatewayConfig{})
//	handler := http.NewHandler(&http.HandlerConfig{
//	    Metrics: metrics.Handler(nil),
//	    Health:  store,
//	}, gw)
//	stdhttp.ListenAndServe(":8080", handler.Router())
//
// HandlerConfig.Store mounts an object store handler under /store so the
// local development backend can serve its presigned URLs from the same
// listener.
package http
