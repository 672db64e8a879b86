package rpc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tearfur/transmission/internal/variant"
)

func echoHandler(args variant.Value, reply func(string, variant.Value)) {
	reply("success", args)
}

func TestDispatchNormalizesUnderscoreAndHyphen(t *testing.T) {
	d := NewDispatcher()
	d.Handle("torrent-get", echoHandler)

	req := variant.NewMap()
	req.SetByName("method", variant.String("torrent_get"))
	resp := d.Dispatch(req)

	result, _ := resp.GetByName("result")
	s, _ := result.Str()
	require.Equal(t, "success", s)
}

func TestDispatchUnknownMethod(t *testing.T) {
	d := NewDispatcher()
	req := variant.NewMap()
	req.SetByName("method", variant.String("no-such-method"))
	resp := d.Dispatch(req)

	result, _ := resp.GetByName("result")
	s, _ := result.Str()
	require.Contains(t, s, "unknown method")
}

func TestDispatchMissingMethod(t *testing.T) {
	d := NewDispatcher()
	req := variant.NewMap()
	resp := d.Dispatch(req)
	result, _ := resp.GetByName("result")
	s, _ := result.Str()
	require.Equal(t, "no method specified", s)
}

func TestDispatchEchoesTag(t *testing.T) {
	d := NewDispatcher()
	d.Handle("session-get", echoHandler)

	req := variant.NewMap()
	req.SetByName("method", variant.String("session-get"))
	req.SetByName("tag", variant.Int(42))
	resp := d.Dispatch(req)

	tag, ok := resp.GetByName("tag")
	require.True(t, ok)
	n, _ := tag.Int()
	require.Equal(t, int64(42), n)
}

func TestCompletionFiresOnce(t *testing.T) {
	var calls int
	c := NewCompletion(func(result string, arguments variant.Value) {
		calls++
	})
	c.Complete("success", variant.Null())
	c.Complete("success", variant.Null())
	require.Equal(t, 1, calls)
}

func TestFieldIDResolvesDeprecatedAlias(t *testing.T) {
	id, ok := FieldID("uploadedBytes")
	require.True(t, ok)
	id2, ok := FieldID("uploaded_bytes")
	require.True(t, ok)
	require.Equal(t, id2, id)
}
