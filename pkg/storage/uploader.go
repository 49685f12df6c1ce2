package storage

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/majorfi/timeline-intake/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
)

/**************************************************************************************************
** Uploader turns a Store into the asset-upload contract of the pipeline: one call per file,
** never an error return, the outcome carried in TUploadResult.
**************************************************************************************************/
type Uploader struct {
	store  Store
	logger *logrus.Logger
}

func NewUploader(store Store, logger *logrus.Logger) *Uploader {
	return &Uploader{store: store, logger: logger}
}

/**************************************************************************************************
** UploadAsset uploads one file for a vehicle.
**
** The algorithm:
** 1. Opens the file and hashes it with BLAKE3 for the asset record
** 2. Rewinds and streams it to the store under a fresh object key
** 3. Converts byte progress into a 0..100 percentage for the caller
**
** @param ctx - Context for the upload
** @param vehicleID - Owning vehicle
** @param file - File to upload
** @param category - Asset category, part of the object key
** @param progress - Optional percentage callback, called from the uploading goroutine
** @return utils.TUploadResult - Success with URL, key and hash, or the failure message
**************************************************************************************************/
func (u *Uploader) UploadAsset(ctx context.Context, vehicleID string, file utils.TFile, category string, progress func(percent int)) utils.TUploadResult {
	f, err := file.Open()
	if err != nil {
		return failed(fmt.Errorf("error opening %s: %w", file.Name, err))
	}
	defer f.Close()

	hasher := blake3.New()
	size, err := io.Copy(hasher, f)
	if err != nil {
		return failed(fmt.Errorf("error reading %s: %w", file.Name, err))
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return failed(fmt.Errorf("error rewinding %s: %w", file.Name, err))
	}

	key := ObjectKey(vehicleID, category, file.Name)
	var onBytes ProgressFunc
	if progress != nil && size > 0 {
		onBytes = func(written int64) {
			progress(int(written * 100 / size))
		}
	}

	url, err := u.store.Put(ctx, key, f, size, ContentType(file.MediaType, file.Name), onBytes)
	if err != nil {
		return failed(err)
	}

	u.logger.WithFields(logrus.Fields{"file": file.Name, "key": key, "bytes": size}).Debug("asset uploaded")
	return utils.TUploadResult{
		Success: true,
		URL:     url,
		Key:     key,
		Hash:    hex.EncodeToString(hasher.Sum(nil)),
	}
}

func failed(err error) utils.TUploadResult {
	return utils.TUploadResult{Success: false, Error: err.Error()}
}

// HashFile returns the hex BLAKE3 digest of a file, the same digest recorded with uploaded assets.
func HashFile(file utils.TFile) (string, error) {
	f, err := file.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("error reading %s: %w", file.Name, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
