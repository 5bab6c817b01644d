package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

/* =======================================================================
   Aliyun OSS backend
   options: endpoint, bucket, access_key, secret_key, security_token,
            prefix, public_base
======================================================================= */

type OSS struct {
	Bucket     *oss.Bucket
	Endpoint   string
	BucketName string
	Prefix     string
	PublicBase string
}

func NewOSS(d Descriptor) (*OSS, error) {
	endpoint := d.Option("endpoint", "")
	ak := d.Option("access_key", "")
	sk := d.Option("secret_key", "")
	sts := d.Option("security_token", "")
	bucketName := d.Option("bucket", "")
	if endpoint == "" || ak == "" || sk == "" || bucketName == "" {
		return nil, fmt.Errorf("oss: missing option endpoint/access_key/secret_key/bucket")
	}

	var (
		client *oss.Client
		err    error
	)
	if sts != "" {
		client, err = oss.New(endpoint, ak, sk, oss.SecurityToken(sts))
	} else {
		client, err = oss.New(endpoint, ak, sk)
	}
	if err != nil {
		return nil, fmt.Errorf("oss.New: %w", err)
	}

	bkt, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("client.Bucket: %w", err)
	}

	if loc, err := client.GetBucketLocation(bucketName); err != nil {
		var se oss.ServiceError
		if errors.As(err, &se) && se.StatusCode == 403 {
			log.Printf("[OSS] warn: skip location check, access denied (bucket=%s)", bucketName)
		} else {
			return nil, fmt.Errorf("verify bucket: %w", err)
		}
	} else {
		log.Printf("[OSS] bucket %s location: %s", bucketName, loc)
	}

	return &OSS{
		Bucket:     bkt,
		Endpoint:   endpoint,
		BucketName: bucketName,
		Prefix:     strings.Trim(d.Option("prefix", ""), "/"),
		PublicBase: d.Option("public_base", ""),
	}, nil
}

func (s *OSS) key(name string) string {
	if s.Prefix == "" {
		return name
	}
	return s.Prefix + "/" + name
}

func (s *OSS) Save(ctx context.Context, name string, data []byte, contentType string) error {
	if name == "" {
		return fmt.Errorf("empty key")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	// names are stable across re-uploads; the ?v= token does the cache busting
	return s.Bucket.PutObject(s.key(name), bytes.NewReader(data),
		oss.WithContext(ctx),
		oss.ContentType(contentType),
		oss.ContentDisposition("inline"),
		oss.CacheControl("public, max-age=31536000"),
	)
}

func (s *OSS) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := s.Bucket.GetObject(s.key(name), oss.WithContext(ctx))
	if isNotFound(err) {
		return nil, ErrNotFound
	}
	return r, err
}

func (s *OSS) Delete(ctx context.Context, name string) error {
	err := s.Bucket.DeleteObject(s.key(name), oss.WithContext(ctx))
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

func (s *OSS) List(ctx context.Context, prefix string) ([]Object, error) {
	full := s.key(prefix)
	marker := oss.Marker("")
	var out []Object
	for {
		lor, err := s.Bucket.ListObjects(oss.Prefix(full), marker, oss.MaxKeys(1000), oss.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		for _, obj := range lor.Objects {
			name := strings.TrimPrefix(obj.Key, s.Prefix+"/")
			if s.Prefix == "" {
				name = obj.Key
			}
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			out = append(out, Object{Name: name, Size: obj.Size, LastModified: obj.LastModified})
		}
		if !lor.IsTruncated {
			return out, nil
		}
		marker = oss.Marker(lor.NextMarker)
	}
}

func (s *OSS) URL(name string) string {
	key := s.key(name)
	if s.PublicBase != "" {
		return strings.TrimRight(s.PublicBase, "/") + "/" + key
	}
	end := strings.TrimPrefix(strings.TrimPrefix(s.Endpoint, "https://"), "http://")
	return fmt.Sprintf("https://%s.%s/%s", s.BucketName, end, key)
}

func isNotFound(err error) bool {
	var se oss.ServiceError
	if errors.As(err, &se) {
		return se.StatusCode == 404
	}
	return false
}
