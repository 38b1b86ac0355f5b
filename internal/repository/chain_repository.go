package repository

import (
	"time"

	"github.com/chainsplit/chainsplit-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChainRepository struct {
	db *gorm.DB
}

func NewChainRepository(db *gorm.DB) *ChainRepository {
	return &ChainRepository{db: db}
}

// Create stores the chain together with its seeded member list.
func (r *ChainRepository) Create(chain *models.Chain) error {
	if err := chain.ValidateShares(); err != nil {
		return err
	}
	return r.db.Omit("Subscriptions").Create(chain).Error
}

func (r *ChainRepository) FindByID(id uint) (*models.Chain, error) {
	var chain models.Chain
	err := r.withDetails(r.db).First(&chain, id).Error
	if err != nil {
		return nil, notFound(err, "chain %d", id)
	}
	return &chain, nil
}

// ListForUser returns chains created by userID or holding a member record for
// userID in any status.
func (r *ChainRepository) ListForUser(userID uint) ([]models.Chain, error) {
	var chains []models.Chain
	err := r.withDetails(r.db).
		Where("creator_id = ? OR id IN (?)", userID,
			r.db.Model(&models.ChainMember{}).Select("chain_id").Where("user_id = ?", userID)).
		Order("updated_at DESC").
		Find(&chains).Error
	return chains, err
}

// ListIDsForParticipant returns ids of chains created by userID or where
// userID is a pending or accepted member.
func (r *ChainRepository) ListIDsForParticipant(userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Chain{}).
		Where("creator_id = ? OR id IN (?)", userID,
			r.db.Model(&models.ChainMember{}).Select("chain_id").
				Where("user_id = ? AND status <> ?", userID, models.MemberRejected)).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

// UpdateMembers loads the chain inside a transaction, applies mutate, checks
// the share total and writes the member list back. Any error rolls the whole
// write back.
func (r *ChainRepository) UpdateMembers(chainID uint, mutate func(chain *models.Chain) error) (*models.Chain, error) {
	var out *models.Chain
	err := r.db.Transaction(func(tx *gorm.DB) error {
		chain, err := r.lockChain(tx, chainID)
		if err != nil {
			return err
		}
		if err := mutate(chain); err != nil {
			return err
		}
		if err := chain.ValidateShares(); err != nil {
			return err
		}

		for i := range chain.Members {
			chain.Members[i].ChainID = chain.ID
		}
		if len(chain.Members) > 0 {
			if err := tx.Omit(clause.Associations).Save(&chain.Members).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&models.Chain{}).Where("id = ?", chain.ID).
			Update("updated_at", time.Now()).Error; err != nil {
			return err
		}
		out = chain
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.FindByID(out.ID)
}

// AttachSubscription points the subscription at the chain and flags it shared.
func (r *ChainRepository) AttachSubscription(chainID, subscriptionID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if _, err := r.lockChain(tx, chainID); err != nil {
			return err
		}
		res := tx.Model(&models.Subscription{}).Where("id = ?", subscriptionID).
			Updates(map[string]interface{}{"chain_id": chainID, "is_shared": true})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound(gorm.ErrRecordNotFound, "subscription %d", subscriptionID)
		}
		return nil
	})
}

func (r *ChainRepository) withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC, user_id ASC")
		}).
		Preload("Members.User").
		Preload("Subscriptions", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		})
}

// lockChain reads the chain and its members, taking a row lock where the
// dialect supports it.
func (r *ChainRepository) lockChain(tx *gorm.DB, chainID uint) (*models.Chain, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var chain models.Chain
	if err := q.First(&chain, chainID).Error; err != nil {
		return nil, notFound(err, "chain %d", chainID)
	}
	if err := tx.Where("chain_id = ?", chainID).
		Order("joined_at ASC, user_id ASC").
		Find(&chain.Members).Error; err != nil {
		return nil, err
	}
	return &chain, nil
}
