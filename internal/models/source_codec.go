package models

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"gorm.io/gorm"
)

var (
	codecOnce    sync.Once
	sourceEncode *zstd.Encoder
	sourceDecode *zstd.Decoder
	codecErr     error
)

func sourceCodec() (*zstd.Encoder, *zstd.Decoder, error) {
	codecOnce.Do(func() {
		sourceEncode, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			return
		}
		sourceDecode, codecErr = zstd.NewReader(nil)
	})
	return sourceEncode, sourceDecode, codecErr
}

// BeforeSave compresses the source code into the stored column.
func (s *Submission) BeforeSave(tx *gorm.DB) error {
	if s.SourceCode == "" {
		s.Source = nil
		return nil
	}
	enc, _, err := sourceCodec()
	if err != nil {
		return fmt.Errorf("init source codec: %w", err)
	}
	s.Source = enc.EncodeAll([]byte(s.SourceCode), nil)
	return nil
}

// AfterFind restores SourceCode from the compressed column.
func (s *Submission) AfterFind(tx *gorm.DB) error {
	if len(s.Source) == 0 {
		s.SourceCode = ""
		return nil
	}
	_, dec, err := sourceCodec()
	if err != nil {
		return fmt.Errorf("init source codec: %w", err)
	}
	plain, err := dec.DecodeAll(s.Source, nil)
	if err != nil {
		return fmt.Errorf("decode source of submission %d: %w", s.ID, err)
	}
	s.SourceCode = string(plain)
	return nil
}
