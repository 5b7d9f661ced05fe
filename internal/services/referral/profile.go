package referral

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/partnerhub/engine/internal/errs"
	"github.com/partnerhub/engine/internal/models"
	"github.com/partnerhub/engine/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProfileUpdate carries the editable profile fields; nil fields are left alone
type ProfileUpdate struct {
	Name          *string `json:"name"`
	Mobile        *string `json:"mobile"`
	UPIID         *string `json:"upi_id"`
	WalletAddress *string `json:"wallet_address"`
	TPIN          *string `json:"tpin"`
}

// UpdateProfile edits contact and payout details. A new T-PIN must be
// exactly four digits and only its bcrypt hash is stored.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, upd ProfileUpdate) (*models.User, error) {
	changes := map[string]interface{}{}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, errs.Validation(errs.CodeInvalidInput, "name cannot be empty")
		}
		changes["name"] = name
	}
	if upd.Mobile != nil {
		changes["mobile"] = strings.TrimSpace(*upd.Mobile)
	}
	if upd.UPIID != nil {
		upi := strings.TrimSpace(*upd.UPIID)
		if upi != "" && !utils.IsValidUPI(upi) {
			return nil, errs.Validation(errs.CodeInvalidPayoutAddress, "UPI id must look like name@bank")
		}
		changes["upi_id"] = upi
	}
	if upd.WalletAddress != nil {
		addr := strings.TrimSpace(*upd.WalletAddress)
		if addr != "" {
			if !utils.IsValidCryptoAddress(addr) {
				return nil, errs.Validation(errs.CodeInvalidPayoutAddress, "wallet address is not a valid BEP20/ERC20 address")
			}
			addr = utils.NormalizeCryptoAddress(addr)
		}
		changes["wallet_address"] = addr
	}
	if upd.TPIN != nil {
		if !utils.IsValidPIN(*upd.TPIN) {
			return nil, errs.Validation(errs.CodeInvalidPINFormat, "T-PIN must be exactly 4 digits")
		}
		hash, err := utils.HashPIN(*upd.TPIN)
		if err != nil {
			return nil, errs.System(errs.CodeStorage, err)
		}
		changes["tpin_hash"] = hash
	}

	var user *models.User
	err := s.runner.InTx(ctx, func(tx *gorm.DB) error {
		var err error
		user, err = FindUser(tx, userID)
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			return nil
		}
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Updates(changes).Error; err != nil {
			return err
		}
		user, err = FindUser(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if _, ok := changes["tpin_hash"]; ok {
		s.logger.Info("transfer PIN changed", zap.String("user_id", userID.String()))
	}
	return user, nil
}
