package providers

import "sync"

// insertAllResponsePool provides a pool for insertAll diagnostic responses
var insertAllResponsePool = sync.Pool{
	New: func() interface{} {
		return &BigQueryInsertAllResponse{}
	},
}

// acquireInsertAllResponse gets an insertAll response from the pool
func acquireInsertAllResponse() *BigQueryInsertAllResponse {
	resp := insertAllResponsePool.Get().(*BigQueryInsertAllResponse)
	*resp = BigQueryInsertAllResponse{} // Reset the struct
	return resp
}

// releaseInsertAllResponse returns an insertAll response to the pool
func releaseInsertAllResponse(resp *BigQueryInsertAllResponse) {
	if resp != nil {
		insertAllResponsePool.Put(resp)
	}
}
