package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	keys  []string
	datas [][]byte
	err   error
}

func (f *fakePutter) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.datas = append(f.datas, data)
	return nil
}

func TestArchiveSinkWritesJSON(t *testing.T) {
	p := &fakePutter{}
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	e := Event{Action: ActionCustomerDelete, CustomerID: "c1", Email: "a@example.com", Deleted: true, At: at}

	require.NoError(t, NewArchiveSink(p, "").Record(context.Background(), e))
	require.Len(t, p.keys, 1)
	assert.True(t, strings.HasPrefix(p.keys[0], "audit/2026/03/04/"))
	assert.True(t, strings.HasSuffix(p.keys[0], "-c1.json"))

	var got Event
	require.NoError(t, json.Unmarshal(p.datas[0], &got))
	assert.Equal(t, e, got)
}

func TestMultiJoinsErrors(t *testing.T) {
	ok := &fakePutter{}
	bad := &fakePutter{err: errors.New("bucket gone")}
	m := Multi{LogSink{}, NewArchiveSink(bad, "x"), NewArchiveSink(ok, "y")}

	err := m.Record(context.Background(), Event{Action: ActionCustomerDelete, CustomerID: "c", At: time.Now()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket gone")
	assert.Len(t, ok.keys, 1)
}
