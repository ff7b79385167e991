package raceengine

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
	"golang.org/x/sync/errgroup"
)

type ArtifactStoreConfig struct {
	BaseURL   string   `json:"base_url" yaml:"base_url"`
	CacheFile string   `json:"cache_file" yaml:"cache_file"`
	Circuits  []string `json:"circuits" yaml:"circuits"`
	Compounds []string `json:"compounds" yaml:"compounds"`
}

const circuitMetadataArtifact = "circuits.json"

var artifactCacheBucket = []byte("artifacts")

// ArtifactLoader performs the one-shot bulk load of fitted models from the
// remote artifact store at startup. Downloads are mirrored into a local
// bolt file so a restart can come up while the store is unreachable. After
// the load completes the store is never contacted again.
type ArtifactLoader struct {
	config ArtifactStoreConfig
	client *http.Client
	logger Logger
}

func NewArtifactLoader(config ArtifactStoreConfig, logger Logger) *ArtifactLoader {
	return &ArtifactLoader{
		config: config,
		client: &http.Client{Timeout: time.Minute},
		logger: logger,
	}
}

func modelArtifactName(circuit, compound string) string {
	return fmt.Sprintf("models/%s_%s.json", circuit, compound)
}

// LoadModelCache downloads every required artifact and builds the immutable
// model cache. A required artifact which can be neither downloaded nor read
// from the local mirror fails the load, and with it process startup.
func (l *ArtifactLoader) LoadModelCache(ctx context.Context) (*ModelCache, error) {
	required := []string{circuitMetadataArtifact}

	for _, circuit := range l.config.Circuits {
		for _, compound := range l.config.Compounds {
			required = append(required, modelArtifactName(circuit, compound))
		}
	}

	l.logger.Infof("Loading %d artifacts from %s", len(required), l.config.BaseURL)

	documents, err := l.fetchAll(ctx, required)

	if err != nil {
		return nil, err
	}

	var meta map[string]CircuitMeta

	if err := json.Unmarshal(documents[circuitMetadataArtifact], &meta); err != nil {
		return nil, &StartupArtifactLoadError{Artifact: circuitMetadataArtifact, Err: err}
	}

	var artifacts []*ModelArtifact

	for _, circuit := range l.config.Circuits {
		circuitMeta, ok := meta[circuit]

		if !ok {
			return nil, &StartupArtifactLoadError{Artifact: circuitMetadataArtifact, Err: fmt.Errorf("no metadata for circuit %q", circuit)}
		}

		for _, compound := range l.config.Compounds {
			name := modelArtifactName(circuit, compound)

			artifact, err := ParseModelArtifact(documents[name], circuitMeta)

			if err != nil {
				return nil, &StartupArtifactLoadError{Artifact: name, Err: err}
			}

			artifacts = append(artifacts, artifact)
		}
	}

	l.logger.Infof("Model cache populated with %d artifacts", len(artifacts))

	return NewModelCache(artifacts), nil
}

// fetchAll downloads the named artifacts concurrently, falling back to the
// local mirror for any the store could not serve.
func (l *ArtifactLoader) fetchAll(ctx context.Context, names []string) (map[string][]byte, error) {
	var mutex sync.Mutex

	downloaded := make(map[string][]byte)
	failed := make(map[string]error)

	g, ctx := errgroup.WithContext(ctx)

	for _, name := range names {
		name := name

		g.Go(func() error {
			data, err := l.download(ctx, name)

			mutex.Lock()
			defer mutex.Unlock()

			if err != nil {
				failed[name] = err
				return nil
			}

			downloaded[name] = data

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(failed) > 0 {
		l.logger.Warnf("Could not download %d of %d artifacts, checking local mirror", len(failed), len(names))
	}

	if err := l.syncMirror(downloaded, failed); err != nil {
		return nil, err
	}

	for name, err := range failed {
		if _, ok := downloaded[name]; !ok {
			return nil, &StartupArtifactLoadError{Artifact: name, Err: err}
		}
	}

	return downloaded, nil
}

func (l *ArtifactLoader) download(ctx context.Context, name string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s", l.config.BaseURL, name)

	request, err := http.NewRequest(http.MethodGet, url, nil)

	if err != nil {
		return nil, err
	}

	response, err := l.client.Do(request.WithContext(ctx))

	if err != nil {
		return nil, errors.Wrapf(err, "could not download %s", url)
	}

	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, errors.Errorf("artifact store returned %s for %s", response.Status, url)
	}

	data, err := ioutil.ReadAll(response.Body)

	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", url)
	}

	l.logger.Debugf("Downloaded artifact %s (%d bytes)", name, len(data))

	return data, nil
}

// syncMirror writes fresh downloads into the local bolt mirror and reads
// mirrored copies for artifacts the store could not serve.
func (l *ArtifactLoader) syncMirror(downloaded map[string][]byte, failed map[string]error) error {
	if l.config.CacheFile == "" {
		return nil
	}

	db, err := bbolt.Open(l.config.CacheFile, 0644, &bbolt.Options{Timeout: time.Second})

	if err != nil {
		return errors.Wrap(err, "could not open artifact mirror")
	}

	defer db.Close()

	return db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(artifactCacheBucket)

		if err != nil {
			return err
		}

		for name, data := range downloaded {
			if err := bucket.Put([]byte(name), data); err != nil {
				return err
			}
		}

		for name := range failed {
			data := bucket.Get([]byte(name))

			if data == nil {
				continue
			}

			l.logger.Infof("Using mirrored copy of artifact %s", name)

			mirrored := make([]byte, len(data))
			copy(mirrored, data)

			downloaded[name] = mirrored
		}

		return nil
	})
}
