package helper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"calman.com/worklog/calman/v1/common"
	"calman.com/worklog/infrastructure/communication"
	"calman.com/worklog/infrastructure/filesystem"
	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

type Opener interface {
	Open(ctx context.Context, source string) (io.ReadCloser, string, error)
}

type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader, carModel string) (*common.UploadResponse, error)
}

// Importer uploads workbooks dropped into S3 to the backend. The car model is the
// name of the folder holding the object, e.g. plans/ON SUB/week-02.xlsx.
type Importer struct {
	Files  Opener
	API    Uploader
	Slack  *communication.Slack
	Logger *zap.Logger
}

// CarModelFromKey returns the parent folder of an S3 key, or "" for keys at the
// bucket root.
func CarModelFromKey(key string) string {
	dir := path.Dir(key)
	if dir == "." || dir == "/" {
		return ""
	}
	return path.Base(dir)
}

// HandleRequest imports every workbook in the event. Failures are reported and
// joined so the invocation is retried.
func (im *Importer) HandleRequest(ctx context.Context, event events.S3Event) error {
	var errs []error
	for _, record := range event.Records {
		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			key = record.S3.Object.Key
		}
		if !filesystem.IsWorkbook(key) {
			im.Logger.Info("skipping non workbook object", zap.String("key", key))
			continue
		}

		source := fmt.Sprintf("s3://%s/%s", record.S3.Bucket.Name, key)
		res, err := im.importOne(ctx, source, key)
		if err != nil {
			im.Logger.Error("import failed", zap.String("source", source), zap.Error(err))
			im.report(ctx, true, fmt.Sprintf("Import of %s failed: %v", source, err))
			errs = append(errs, err)
			continue
		}

		im.Logger.Info("imported", zap.String("source", source), zap.Int("processed", res.TotalProcessed), zap.Int("errors", len(res.Errors)))
		msg := fmt.Sprintf("Imported %s: %s", source, res.Message)
		if len(res.Errors) > 0 {
			msg += "\n" + strings.Join(res.Errors, "\n")
		}
		im.report(ctx, len(res.Errors) > 0, msg)
	}
	return errors.Join(errs...)
}

func (im *Importer) importOne(ctx context.Context, source, key string) (*common.UploadResponse, error) {
	carModel := CarModelFromKey(key)
	if carModel == "" {
		return nil, fmt.Errorf("cannot tell the car model of %s: put the workbook in a folder named after it", key)
	}

	f, name, err := im.Files.Open(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", source, err)
	}
	defer f.Close()

	return im.API.Upload(ctx, name, f, carModel)
}

func (im *Importer) report(ctx context.Context, failure bool, message string) {
	if im.Slack == nil {
		return
	}
	post := im.Slack.Info
	if failure {
		post = im.Slack.Error
	}
	if err := post(ctx, message); err != nil {
		im.Logger.Warn("slack report failed", zap.Error(err))
	}
}
