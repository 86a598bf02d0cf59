package apiserver

// Wire types. []byte fields travel base64-encoded, as encoding/json
// does by default.

type storeKeyRequest struct {
	VideoID      string   `json:"videoId"`
	Key          []byte   `json:"key"`
	ChunkNonces  [][]byte `json:"chunkNonces"`
	OwnerAddress string   `json:"ownerAddress"`
	Signature    []byte   `json:"signature"`
}

type storeKeyResponse struct {
	Success bool `json:"success"`
}

type requestKeyRequest struct {
	VideoID          string `json:"videoId"`
	RequesterAddress string `json:"requesterAddress"`
	Signature        []byte `json:"signature"`
}

type requestKeyResponse struct {
	Key         []byte   `json:"key"`
	ChunkNonces [][]byte `json:"chunkNonces"`
}

type errorResponse struct {
	Error string `json:"error"`
}
