package interfaces

// -----------------------------------------------------------------------------
// INetworkManager abstracts outbound HTTP so sources and the collector share
// one client with timeouts and retry behavior.
// -----------------------------------------------------------------------------

type INetworkManager interface {
	// Get performs a GET request with query params and returns the body.
	Get(url string, params map[string]string) ([]byte, error)
}
