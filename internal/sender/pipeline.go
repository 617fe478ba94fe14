package sender

import (
	"context"
	"fmt"
	"time"

	"github.com/openbuilders/wine-minter/internal/types"
)

// mint walks one wine through download, upload, mint and confirmation. Every
// failure, a stop included, leaves the wine recorded as failed.
func (s *Sender) mint(ctx context.Context, winery *types.Winery, wine *types.Wine) error {
	s.update(func(p *types.BatchMintingProgress) {
		p.CurrentWinery = winery.Name()
		p.CurrentWine = wine.DisplayName()
	})

	status := types.MintingStatus{
		WineID:    wine.ID,
		WineryID:  winery.ID,
		Timestamp: s.clock.Now(),
	}

	if !wine.HasValidImage() {
		s.record(status.Failed(ErrInvalidImageURL.Error(), s.clock.Now()))
		return ErrInvalidImageURL
	}

	status = status.With(types.StatusMinting, s.clock.Now())
	s.record(status)

	receipt, err := s.submit(ctx, wine)
	if err != nil {
		if ctx.Err() != nil {
			err = ErrProcessingStopped
		}
		s.record(status.Failed(err.Error(), s.clock.Now()))
		return err
	}

	status = status.With(types.StatusConfirming, s.clock.Now())
	status.TxID = receipt.TxID
	status.TokenRefID = receipt.TokenRefID
	s.record(status)

	started := time.Now()
	_, err = s.confirmer.Confirm(ctx, receipt.TxID)
	observeStep("confirm", started)
	if err != nil {
		s.record(status.Failed("Confirmation failed: "+err.Error(), s.clock.Now()))
		return fmt.Errorf("confirmation failed: %w", err)
	}

	s.record(status.With(types.StatusSuccess, s.clock.Now()))

	return nil
}

// submit prepares the token and submits it, checking for a stop before every
// network call.
func (s *Sender) submit(ctx context.Context, wine *types.Wine) (*types.MintReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	started := time.Now()
	image, err := s.fetcher.FetchImage(ctx, wine.GeneralInfo.Image, wine.ID+".jpg")
	observeStep("download", started)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	started = time.Now()
	ipfsURI, err := s.uploader.AddImage(ctx, image)
	observeStep("upload", started)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, err := types.NewMintPayload(wine, ipfsURI, s.snapshot(ctx))
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	started = time.Now()
	receipt, err := s.minter.MintBatch(ctx, payload)
	observeStep("mint", started)
	if err != nil {
		return nil, err
	}

	s.log.Info("Wine submitted for minting", "wine", wine.ID, "tx", receipt.TxID,
		"token", receipt.TokenRefID)

	return receipt, nil
}

// snapshot never fails: the token is minted without sensor data when the
// sensors are unreachable.
func (s *Sender) snapshot(ctx context.Context) map[string]any {
	if s.sensors == nil {
		return map[string]any{}
	}

	snapshot, err := s.sensors.Snapshot(ctx)
	if err != nil {
		s.log.Warn("Sensor snapshot unavailable, minting without it", "error", err)
		return map[string]any{}
	}

	return snapshot
}
