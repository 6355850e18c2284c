package storageutil

import (
	"context"
	"errors"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/pierrec/lz4/v4"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// ErrObjectNotFound indicates an object was not found.
var ErrObjectNotFound = errors.New("object not found")

const objectTimeout = 5 * time.Second

// CompressedWrite encodes d as JSON, compresses it and writes it to the
// bucket. On failure the write is aborted and no object is created.
func CompressedWrite(ctx context.Context, b *blob.Bucket, objectName string, d interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, objectTimeout)
	defer cancel()

	ow, err := b.NewWriter(ctx, objectName, &blob.WriterOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return err
	}
	zw := lz4.NewWriter(ow)
	_ = zw.Apply(lz4.CompressionLevelOption(lz4.Level9))
	err = gojson.NewEncoder(zw).Encode(d)
	if err == nil {
		err = zw.Close()
	}
	if err != nil {
		// Closing a writer with a canceled context discards the object.
		cancel()
		_ = ow.Close()
		return err
	}
	return ow.Close()
}

// UnmarshalCompressed reads compressed JSON data from the bucket and
// unmarshals it into d. It returns ErrObjectNotFound if the object is absent.
func UnmarshalCompressed(ctx context.Context, b *blob.Bucket, objectName string, d interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, objectTimeout)
	defer cancel()

	or, err := b.NewReader(ctx, objectName, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return ErrObjectNotFound
		}
		return err
	}
	defer or.Close()
	return gojson.NewDecoder(lz4.NewReader(or)).Decode(d)
}
