package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMQTTClient implements mqtt.Client and records published payloads.
type fakeMQTTClient struct {
	mu       sync.Mutex
	topics   []string
	payloads []string
	err      error
}

func (f *fakeMQTTClient) Connect(_ context.Context) error { return nil }

func (f *fakeMQTTClient) Publish(_ context.Context, topic, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeMQTTClient) IsConnected() bool { return true }

func (f *fakeMQTTClient) Disconnect() {}

func (f *fakeMQTTClient) published() (topics, payloads []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.topics...), append([]string(nil), f.payloads...)
}

// fakeUploader implements export.Uploader and records uploaded paths.
type fakeUploader struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (f *fakeUploader) Name() string { return "fake" }

func (f *fakeUploader) Upload(_ context.Context, localPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.paths = append(f.paths, localPath)
	return nil
}

func (f *fakeUploader) uploaded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

func TestMQTTSinkPublishesResultJSON(t *testing.T) {
	t.Parallel()

	client := &fakeMQTTClient{}
	sink := NewMQTTSink(client)
	assert.Equal(t, "mqtt", sink.Name())

	result := &Result{
		RecordID:   7,
		Filename:   "basket.jpg",
		Counts:     map[string]int{"apple": 2, "banana": 1},
		TotalCount: 3,
		ModelName:  "yolov8n",
	}
	require.NoError(t, sink.Deliver(context.Background(), result))

	topics, payloads := client.published()
	require.Len(t, payloads, 1)
	assert.Empty(t, topics[0], "empty topic should defer to the client's configured topic")

	var decoded Result
	require.NoError(t, json.Unmarshal([]byte(payloads[0]), &decoded))
	assert.Equal(t, result.RecordID, decoded.RecordID)
	assert.Equal(t, result.Counts, decoded.Counts)
	assert.Equal(t, result.TotalCount, decoded.TotalCount)
}

func TestExportSinkUploadsArtifact(t *testing.T) {
	t.Parallel()

	uploader := &fakeUploader{}
	sink := NewExportSink(uploader, "/data/artifacts")
	assert.Equal(t, "fake", sink.Name())

	result := &Result{OutputReference: "basket_annotated.jpg"}
	require.NoError(t, sink.Deliver(context.Background(), result))

	paths := uploader.uploaded()
	require.Len(t, paths, 1)
	assert.Equal(t, filepath.Join("/data/artifacts", "basket_annotated.jpg"), paths[0])
}

func TestExportSinkSkipsResultsWithoutArtifact(t *testing.T) {
	t.Parallel()

	uploader := &fakeUploader{}
	sink := NewExportSink(uploader, "/data/artifacts")

	require.NoError(t, sink.Deliver(context.Background(), &Result{OutputReference: ""}))
	assert.Empty(t, uploader.uploaded())
}

func TestProcessPublishesResultOverMQTT(t *testing.T) {
	t.Parallel()

	p, _ := newTestPipeline(t, createTestSettings(t), &stubDetector{result: countingResult(map[string]int{"apple": 1})})
	client := &fakeMQTTClient{}
	p.AddSink(NewMQTTSink(client))

	err := p.Process(context.Background(), &Upload{
		Reader:   bytes.NewReader(pngBytes(t)),
		Filename: "basket.png",
		Source:   SourceUpload,
	})
	require.NoError(t, err)
	p.Wait()

	_, payloads := client.published()
	require.Len(t, payloads, 1)

	var decoded Result
	require.NoError(t, json.Unmarshal([]byte(payloads[0]), &decoded))
	assert.Equal(t, map[string]int{"apple": 1}, decoded.Counts)
	assert.Equal(t, 1, decoded.TotalCount)
}
