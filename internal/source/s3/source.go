package s3

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"digest-backend/internal/shared/faults"
	s3store "digest-backend/internal/shared/storage/object/s3"
	"digest-backend/internal/shared/util"
	"digest-backend/internal/source"
)

// API is the subset of the S3 client the adapter calls.
type API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Source lists documents under bucket/prefix/scope. Object keys are the
// document ids; LastModified stands in for the creation timestamp.
type Source struct {
	client   API
	bucket   string
	prefix   string
	kmsKeyID string
}

// New creates an S3-backed source.
func New(client API, bucket, prefix, kmsKeyID string) (*Source, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, faults.Configuration("s3 bucket is required for the s3 source")
	}
	if client == nil {
		return nil, faults.Configuration("s3 client is required")
	}
	return &Source{
		client:   client,
		bucket:   bucket,
		prefix:   s3store.NormalizePrefix(prefix),
		kmsKeyID: strings.TrimSpace(kmsKeyID),
	}, nil
}

// List pages through ListObjectsV2 under the scope prefix.
func (s *Source) List(ctx context.Context, scope, contentType string, since time.Time) ([]source.File, error) {
	listPrefix := s3store.ApplyPrefix(s.prefix, s3store.NormalizePrefix(scope))
	if listPrefix != "" {
		listPrefix += "/"
	}
	ext := source.ExtensionFor(contentType)

	var files []source.File
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(listPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, faults.Transfer(err, fmt.Sprintf("s3 list bucket=%s prefix=%s", s.bucket, listPrefix))
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			if ext != "" && !strings.EqualFold(path.Ext(key), ext) {
				continue
			}
			modified := aws.ToTime(obj.LastModified)
			if modified.Before(since) {
				continue
			}
			files = append(files, source.File{
				ID:        key,
				Name:      path.Base(key),
				CreatedAt: modified.UTC(),
				Link:      s.link(key),
				Size:      aws.ToInt64(obj.Size),
			})
		}
	}

	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].CreatedAt.Before(files[j].CreatedAt)
		}
		return files[i].ID < files[j].ID
	})
	return files, nil
}

// Download streams the object identified by its key.
func (s *Source) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return nil, faults.Transfer(err, fmt.Sprintf("s3 get object bucket=%s key=%s", s.bucket, id))
	}
	return out.Body, nil
}

// Upload stores r under prefix/scope with a random name prefix.
func (s *Source) Upload(ctx context.Context, r io.Reader, name, scope string) (source.Uploaded, error) {
	sanitized, err := util.SanitizeFileName(name)
	if err != nil {
		return source.Uploaded{}, faults.Invalid(fmt.Sprintf("file name %q: %v", name, err))
	}
	key := s3store.ApplyPrefix(s.prefix, path.Join(s3store.NormalizePrefix(scope), fmt.Sprintf("%s_%s", util.RandomID(), sanitized)))

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(source.ContentTypePDF),
	}
	s3store.ApplyEncryption(input, s.kmsKeyID)

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return source.Uploaded{}, faults.Transfer(err, fmt.Sprintf("s3 put object bucket=%s key=%s", s.bucket, key))
	}
	return source.Uploaded{ID: key, Link: s.link(key)}, nil
}

func (s *Source) link(key string) string {
	return "s3://" + s.bucket + "/" + key
}

var _ source.Source = (*Source)(nil)
