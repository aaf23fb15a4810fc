package consumer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	d "github.com/fjod/go_pos/internal/domain"
	"github.com/redis/go-redis/v9"
)

const totalsTTL = 400 * 24 * time.Hour

var ErrNoSales = errors.New("no sales recorded for the day")

// KEYS[1] totals hash, KEYS[2] set of counted sale ids.
// ARGV: sale id, items, grand total, tax, discount, payment method, ttl seconds.
var recordScript = redis.NewScript(`
if redis.call('SADD', KEYS[2], ARGV[1]) == 0 then
	return 0
end
redis.call('HINCRBY', KEYS[1], 'sales', 1)
redis.call('HINCRBY', KEYS[1], 'items', ARGV[2])
redis.call('HINCRBYFLOAT', KEYS[1], 'revenue', ARGV[3])
redis.call('HINCRBYFLOAT', KEYS[1], 'tax', ARGV[4])
redis.call('HINCRBYFLOAT', KEYS[1], 'discount', ARGV[5])
redis.call('HINCRBYFLOAT', KEYS[1], 'payment:' .. ARGV[6], ARGV[3])
redis.call('EXPIRE', KEYS[1], ARGV[7])
redis.call('EXPIRE', KEYS[2], ARGV[7])
return 1
`)

type DailySummary struct {
	Date      string             `json:"date"`
	Sales     int                `json:"sales"`
	Items     int                `json:"items"`
	Revenue   float64            `json:"revenue"`
	Tax       float64            `json:"tax"`
	Discount  float64            `json:"discount"`
	ByPayment map[string]float64 `json:"by_payment"`
}

// DailyTotals accumulates per-user per-day sale totals in Redis.
type DailyTotals struct {
	client *redis.Client
}

func NewDailyTotals(client *redis.Client) *DailyTotals {
	return &DailyTotals{client: client}
}

// Record counts a sale once; it reports false for a sale already counted.
func (t *DailyTotals) Record(ctx context.Context, ev d.SaleCompletedEvent) (bool, error) {
	payment := string(ev.PaymentMethod)
	if payment == "" {
		payment = string(d.PaymentCash)
	}
	res, err := recordScript.Run(ctx, t.client,
		[]string{totalsKey(ev.UserID, ev.Date), seenKey(ev.UserID, ev.Date)},
		ev.SaleID,
		ev.ItemCount,
		formatFloat(ev.GrandTotal),
		formatFloat(ev.Tax),
		formatFloat(ev.DiscountAmount),
		payment,
		int(totalsTTL.Seconds()),
	).Int()
	if err != nil {
		return false, fmt.Errorf("record daily totals: %w", err)
	}
	return res == 1, nil
}

func (t *DailyTotals) Summary(ctx context.Context, userID, date string) (*DailySummary, error) {
	fields, err := t.client.HGetAll(ctx, totalsKey(userID, date)).Result()
	if err != nil {
		return nil, fmt.Errorf("load daily totals: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNoSales
	}

	s := &DailySummary{Date: date, ByPayment: make(map[string]float64)}
	for k, v := range fields {
		switch {
		case k == "sales":
			s.Sales, _ = strconv.Atoi(v)
		case k == "items":
			s.Items, _ = strconv.Atoi(v)
		case k == "revenue":
			s.Revenue, _ = strconv.ParseFloat(v, 64)
		case k == "tax":
			s.Tax, _ = strconv.ParseFloat(v, 64)
		case k == "discount":
			s.Discount, _ = strconv.ParseFloat(v, 64)
		case strings.HasPrefix(k, "payment:"):
			s.ByPayment[strings.TrimPrefix(k, "payment:")], _ = strconv.ParseFloat(v, 64)
		}
	}
	return s, nil
}

func totalsKey(userID, date string) string {
	return fmt.Sprintf("pos:%s:daily:%s", userID, date)
}

func seenKey(userID, date string) string {
	return fmt.Sprintf("pos:%s:daily:%s:sales", userID, date)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
