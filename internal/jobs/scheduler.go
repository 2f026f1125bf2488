// Package jobs управляет фоновыми задачами (cron).
// scheduler.go рассылает администраторам дайджест открытых сделок по расписанию.
package jobs

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/escrow-bot/internal/common"
	"serotonyl.ru/escrow-bot/internal/features/deals"
	"serotonyl.ru/escrow-bot/internal/messaging"
	"serotonyl.ru/escrow-bot/internal/metrics"
)

const maxDigestLen = 3500

// DealLister отдаёт открытые сделки.
type DealLister interface {
	ListOpen() []deals.Deal
}

// AdminLister отдаёт получателей дайджеста.
type AdminLister interface {
	List() []int64
}

// LanguageResolver возвращает язык пользователя.
type LanguageResolver interface {
	Language(userID int64) string
}

// CurrencyLabeler возвращает текущую валюту.
type CurrencyLabeler interface {
	Label() string
}

// Text: строки дайджеста.
type Text interface {
	messaging.Renderer
	DealsWord(lang string, n int64) string
}

// Deps: зависимости планировщика.
type Deps struct {
	Deals     DealLister
	Admins    AdminLister
	Languages LanguageResolver
	Currency  CurrencyLabeler
	Text      Text
	Gateway   messaging.Gateway
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron    *cron.Cron
	spec    string
	loc     *time.Location
	deps    Deps
	now     func() time.Time
	enabled bool
}

// NewScheduler создаёт планировщик. Пустое расписание отключает дайджест.
func NewScheduler(spec string, loc *time.Location, deps Deps) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		cron: cron.New(cron.WithLocation(loc)),
		spec: strings.TrimSpace(spec),
		loc:  loc,
		deps: deps,
		now:  time.Now,
	}
	if s.spec == "" {
		return s, nil
	}
	if _, err := cron.ParseStandard(s.spec); err != nil {
		return nil, fmt.Errorf("некорректное расписание %q: %w", s.spec, err)
	}
	s.enabled = true
	return s, nil
}

// Start запускает фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.enabled {
		log.Info("Дайджест сделок отключён")
		return
	}

	// Расписание уже проверено в NewScheduler
	_, _ = s.cron.AddFunc(s.spec, func() {
		log.Info("[CRON] Дайджест открытых сделок")
		if err := s.SendDigest(ctx); err != nil {
			log.WithError(err).Error("[CRON] Ошибка дайджеста")
		}
	})

	s.cron.Start()
	log.WithFields(log.Fields{
		"spec":     s.spec,
		"timezone": s.loc.String(),
	}).Info("Планировщик задач запущен")
}

// Stop останавливает планировщик и ждёт текущую задачу.
func (s *Scheduler) Stop() {
	if !s.enabled {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

// SendDigest отправляет каждому администратору список открытых сделок на его языке.
// Пустой реестр обновляет метрику и ничего не рассылает.
func (s *Scheduler) SendDigest(ctx context.Context) error {
	open := s.deps.Deals.ListOpen()
	metrics.SetOpenDeals(len(open))
	if len(open) == 0 {
		log.Debug("[CRON] Открытых сделок нет")
		return nil
	}

	var failed int
	admins := s.deps.Admins.List()
	for _, adminID := range admins {
		lang := s.deps.Languages.Language(adminID)
		for _, part := range s.render(lang, open) {
			if err := s.deps.Gateway.Notify(ctx, adminID, part, nil); err != nil {
				failed++
				log.WithError(err).WithField("admin_id", adminID).Warn("[CRON] Дайджест не доставлен")
				break
			}
		}
	}

	if failed == len(admins) && failed > 0 {
		return fmt.Errorf("дайджест не доставлен ни одному из %d админов", failed)
	}
	return nil
}

func (s *Scheduler) render(lang string, open []deals.Deal) []string {
	t := s.deps.Text
	currency := s.deps.Currency.Label()
	header := t.Render(lang, "digest.header", map[string]any{
		"date":       common.FormatDateTime(s.now(), s.loc),
		"count":      len(open),
		"deals_word": t.DealsWord(lang, int64(len(open))),
	})

	var (
		parts []string
		cur   strings.Builder
	)
	cur.WriteString(header)
	for _, d := range open {
		buyer := t.Render(lang, "deal.no_buyer", nil)
		if d.HasBuyer() {
			buyer = strconv.FormatInt(d.BuyerID, 10)
		}
		line := t.Render(lang, "digest.item", map[string]any{
			"deal_id":   d.ID,
			"amount":    common.FormatAmount(d.Amount, currency),
			"seller_id": d.SellerID,
			"buyer":     buyer,
		})
		if cur.Len()+1+len(line) > maxDigestLen {
			parts = append(parts, cur.String())
			cur.Reset()
		} else {
			cur.WriteString("\n")
		}
		cur.WriteString(line)
	}
	return append(parts, cur.String())
}
