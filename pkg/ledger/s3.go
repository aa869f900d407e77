package ledger

import (
	"bytes"
	"context"
	"io/ioutil"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/rdnply/matchsync/pkg/model"
)

// S3Config is the configuration for an S3-compatible ledger store
type S3Config struct {
	// S3 Bucket to keep the ledger object
	Bucket string `toml:"bucket"`
	// Key of the ledger object inside the bucket
	Key string `toml:"key"`
	// Region of the S3 service
	Region string `toml:"region"`
	// EndpointURL is an HTTP endpoint of the S3 API
	EndpointURL string `toml:"endpoint_url"`
}

// S3 keeps the ledger as a single JSON object in an S3-compatible store.
// The object is read once at open and re-uploaded after every mutation.
// S3 object replacement is atomic, so readers never observe a torn ledger.
type S3 struct {
	api      s3iface.S3API
	uploader *s3manager.Uploader
	bucket   string
	key      string

	mu    sync.Mutex
	state state
}

var _ Storage = (*S3)(nil)

func NewS3(c S3Config) (*S3, error) {
	if c.Bucket == "" {
		return nil, errors.New("bucket can't be empty")
	}

	cfg := aws.NewConfig().
		WithEndpoint(c.EndpointURL).
		WithRegion(c.Region).
		WithLogger(s3logger{}).
		WithLogLevel(aws.LogDebug)
	sess, err := session.NewSessionWithOptions(session.Options{Config: *cfg})
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize S3 session")
	}

	key := c.Key
	if key == "" {
		key = ledgerFileName
	}

	storage := &S3{
		api:      s3.New(sess),
		uploader: s3manager.NewUploader(sess),
		bucket:   c.Bucket,
		key:      key,
	}

	if err := storage.load(); err != nil {
		return nil, err
	}

	return storage, nil
}

func (s *S3) load() error {
	s.state = emptyState()

	resp, err := s.api.GetObjectWithContext(aws.BackgroundContext(), &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &s.key,
	})
	if err != nil {
		if awsErr, ok := err.(awserr.Error); ok {
			switch awsErr.Code() {
			case s3.ErrCodeNoSuchKey, "NotFound":
				log.Infof("no ledger object at s3://%s/%s, starting with empty state", s.bucket, s.key)
				return nil
			}
		}
		return errors.Wrap(err, "failed to read ledger object")
	}

	defer resp.Body.Close()

	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read ledger object body")
	}

	s.state = decodeState(data, "object s3://"+s.bucket+"/"+s.key)

	log.Infof("loaded ledger s3://%s/%s with %d published post(s)", s.bucket, s.key, len(s.state.Published))
	return nil
}

func (s *S3) Close() error {
	return nil
}

func (s *S3) IsPublished(_ context.Context, identity string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.state.Published[identity]
	return ok, nil
}

func (s *S3) RecordPublished(ctx context.Context, entry model.PublishedEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.Published[entry.Identity]; ok {
		return model.ErrAlreadyExists
	}

	s.state.Published[entry.Identity] = entry

	if err := s.persist(ctx); err != nil {
		delete(s.state.Published, entry.Identity)
		return err
	}

	return nil
}

func (s *S3) WalkPublished(_ context.Context, cb func(entry model.PublishedEntry) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.state.Published {
		if err := cb(entry); err != nil {
			return err
		}
	}

	return nil
}

func (s *S3) GetCredential(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.Credential, nil
}

func (s *S3) SetCredential(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.state.Credential
	s.state.Credential = token

	if err := s.persist(ctx); err != nil {
		s.state.Credential = previous
		return err
	}

	return nil
}

func (s *S3) persist(ctx context.Context) error {
	data, err := encodeState(&s.state)
	if err != nil {
		return err
	}

	log.Debugf("uploading ledger to s3://%s/%s", s.bucket, s.key)
	_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      &s.bucket,
		Key:         &s.key,
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return errors.Wrap(err, "failed to upload ledger object")
	}

	return nil
}

type s3logger struct{}

func (s s3logger) Log(args ...interface{}) {
	log.Debug(args...)
}
