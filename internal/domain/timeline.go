package domain

import "time"

// TimelineStep — один шаг таймлайна заказа для отображения.
type TimelineStep struct {
	Label     string
	Icon      string
	Status    OrderStatus
	Completed bool
	Current   bool
	Timestamp *time.Time
}

// forwardStatuses — прямой порядок жизненного цикла; cancelled стоит вне его.
var forwardStatuses = [...]OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
}

var timelineLabels = map[OrderStatus]struct {
	label string
	icon  string
}{
	OrderStatusPending:    {"Order placed", "cart"},
	OrderStatusConfirmed:  {"Payment confirmed", "card"},
	OrderStatusProcessing: {"Processing", "box"},
	OrderStatusShipped:    {"Shipped", "truck"},
	OrderStatusDelivered:  {"Delivered", "home"},
	OrderStatusCancelled:  {"Cancelled", "x"},
}

// BuildTimeline превращает (status, order_date, updated_at) в упорядоченный
// список шагов: всё до текущего статуса включительно помечено выполненным,
// текущий шаг выделен отдельно. Отменённый заказ рендерится одним терминальным
// шагом, а не позицией на прямой оси.
func BuildTimeline(status OrderStatus, orderDate, updatedAt time.Time) []TimelineStep {
	if status == OrderStatusCancelled {
		ts := updatedAt
		meta := timelineLabels[OrderStatusCancelled]
		return []TimelineStep{{
			Label:     meta.label,
			Icon:      meta.icon,
			Status:    OrderStatusCancelled,
			Completed: true,
			Current:   true,
			Timestamp: &ts,
		}}
	}

	currentIdx := 0
	for i, s := range forwardStatuses {
		if s == status {
			currentIdx = i
			break
		}
	}

	steps := make([]TimelineStep, 0, len(forwardStatuses))
	for i, s := range forwardStatuses {
		meta := timelineLabels[s]
		step := TimelineStep{
			Label:     meta.label,
			Icon:      meta.icon,
			Status:    s,
			Completed: i <= currentIdx,
			Current:   i == currentIdx,
		}
		// Известны только две временные точки: создание заказа и последнее
		// изменение. Остальные шаги остаются без timestamp.
		switch {
		case i == 0:
			ts := orderDate
			step.Timestamp = &ts
		case i == currentIdx:
			ts := updatedAt
			step.Timestamp = &ts
		}
		steps = append(steps, step)
	}

	return steps
}
