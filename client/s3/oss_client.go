package s3

import (
	"context"
	"leica/config"
	"path"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

var (
	SubmissionBucket *oss.Bucket

	CountObjectsFunc = CountObjects

	// ImageExtensions are the objects counted as approvable assets.
	ImageExtensions = []string{".jpg", ".jpeg", ".png", ".tif", ".tiff", ".raw", ".cr2", ".nef", ".arw", ".dng"}
)

func Bootstrap(c config.OSSConfig) error {
	var err error
	SubmissionBucket, err = BuildBucket(c)
	return err
}

func BuildBucket(c config.OSSConfig) (*oss.Bucket, error) {
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = "dummy"
	}
	// endpoint http://oss-cn-hangzhou.aliyuncs.com
	cli, err := oss.New(endpoint, c.AccessKey, c.SecretKey, oss.HTTPClient(nil))
	if err != nil {
		return nil, err
	}
	return cli.Bucket(c.Bucket)
}

// ObjectLister is the part of *oss.Bucket used for listing.
type ObjectLister interface {
	ListObjects(options ...oss.Option) (oss.ListObjectsResult, error)
}

// CountObjects counts the image objects under prefix in the submission bucket.
func CountObjects(ctx context.Context, prefix string) (int, error) {
	return CountImages(ctx, SubmissionBucket, prefix)
}

func CountImages(ctx context.Context, bucket ObjectLister, prefix string) (int, error) {
	var childSpan opentracing.Span
	if parentSpan := opentracing.SpanFromContext(ctx); parentSpan != nil {
		childSpan = parentSpan.Tracer().StartSpan("list-objects", opentracing.ChildOf(parentSpan.Context()))
		childSpan.SetTag("object-prefix", prefix)
		defer childSpan.Finish()
	}

	count, err := countImages(bucket, normalizePrefix(prefix))
	if childSpan != nil {
		ext.Error.Set(childSpan, err != nil)
	}
	return count, err
}

func countImages(bucket ObjectLister, prefix string) (int, error) {
	count := 0
	marker := oss.Marker("")
	pre := oss.Prefix(prefix)
	for {
		// default page size is 100
		r, err := bucket.ListObjects(marker, pre)
		if err != nil {
			return 0, err
		}
		for _, o := range r.Objects {
			if IsImage(o.Key) {
				count++
			}
		}
		if !r.IsTruncated {
			return count, nil
		}
		marker = oss.Marker(r.NextMarker)
	}
}

func IsImage(key string) bool {
	extension := strings.ToLower(path.Ext(key))
	for _, e := range ImageExtensions {
		if e == extension {
			return true
		}
	}
	return false
}

// normalizePrefix turns an oss:// or bucket-relative submission path into a
// key prefix ending in a slash.
func normalizePrefix(p string) string {
	if strings.HasPrefix(p, "oss://") {
		p = strings.TrimPrefix(p, "oss://")
		if i := strings.Index(p, "/"); i >= 0 {
			p = p[i+1:]
		} else {
			p = ""
		}
	}
	p = strings.TrimPrefix(p, "/")
	if p != "" && !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}
