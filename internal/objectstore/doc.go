// Package objectstore publishes build outputs to S3-compatible storage.
//
// Objects are stored under "<prefix>/<version>/<file name>" in a single
// bucket, which is created on first use. Credentials come from the project
// or user configuration and fall back to the MINIO_ACCESS_KEY and
// AWS_ACCESS_KEY_ID families of environment variables.
//
// Example usage:
//
//	p, err := objectstore.New(objectstore.Config{
//	    Endpoint: "s3.example.org",
//	    Bucket:   "cellprofiler-releases",
//	    UseSSL:   true,
//	})
//	if err != nil {
//	    return err
//	}
//	obj, err := p.Publish(ctx, "output/CellProfiler-2.2.0.exe", "2.2.0")
package objectstore
