package admissionservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crowdlunch/admission/internal/domain/admission"
	"github.com/crowdlunch/admission/internal/ports"
	"github.com/crowdlunch/admission/internal/shared/contracts"
	"github.com/crowdlunch/admission/internal/shared/logger"
)

// Service implements ports.AdmissionService: the all-or-nothing "attempt to
// place an order" orchestration.
type Service struct {
	uow       ports.UnitOfWork
	orders    ports.OrderRepository
	slots     ports.SlotRepository
	menus     ports.MenuRepository
	publisher ports.AdmittedPublisher
	clock     ports.Clock
	logger    *logger.Logger
}

// Ensure Service implements the interface at compile time.
var _ ports.AdmissionService = (*Service)(nil)

// New creates the admission service with its collaborators. publisher may be
// nil when event publishing is disabled.
func New(
	uow ports.UnitOfWork,
	orders ports.OrderRepository,
	slots ports.SlotRepository,
	menus ports.MenuRepository,
	publisher ports.AdmittedPublisher,
	clock ports.Clock,
	logger *logger.Logger,
) *Service {
	return &Service{
		uow:       uow,
		orders:    orders,
		slots:     slots,
		menus:     menus,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}
}

// PlaceOrder runs the admission gates in fixed order. Gate order matters: the
// cafe-time menu gate fires before any slot or stock mutation, so an order
// doomed for menu reasons never consumes capacity. Every mutation happens
// inside one transaction; a rejection at any gate rolls everything back.
func (service *Service) PlaceOrder(ctx context.Context, cmd ports.PlaceOrderCommand) (ports.OrderAdmitted, error) {
	if err := validateCommand(cmd); err != nil {
		return ports.OrderAdmitted{}, err
	}

	now := service.clock.Now()

	// Resolve the pickup instant: absolute timestamp, or the start of the
	// legacy slot label on the service date.
	pickupAt, err := resolvePickup(cmd)
	if err != nil {
		return ports.OrderAdmitted{}, err
	}

	// Gate 1: time window.
	if rej := admission.ValidatePickup(pickupAt, now); rej != nil {
		return ports.OrderAdmitted{}, rej
	}

	var admitted ports.OrderAdmitted
	var committed *admission.Order
	err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		// Gate 2: menu availability for the cafe sub-window, checked for
		// every line item before any capacity or stock is touched.
		items := make([]*admission.MenuItem, len(cmd.Items))
		for i, in := range cmd.Items {
			item, err := service.menus.GetItemForUpdate(txCtx, in.MenuItemID, cmd.ServeDate)
			if err != nil {
				return fmt.Errorf("load menu item %d: %w", in.MenuItemID, err)
			}
			if item == nil {
				return admission.RejectItem(admission.CodeMenuNotAvailable, in.MenuItemID)
			}
			if admission.IsCafeTime(pickupAt) && !item.CafeTimeAvailable {
				return admission.RejectItem(admission.CodeMenuNotAvailable, in.MenuItemID)
			}
			items[i] = item
		}

		// Gate 3: optional slot reservation. The slot must belong to the
		// order's service date; a slot id from another date can never be
		// reserved here.
		if cmd.TimeSlotID != nil {
			slot, err := service.slots.Get(txCtx, *cmd.TimeSlotID)
			if err != nil {
				return fmt.Errorf("load slot %d: %w", *cmd.TimeSlotID, err)
			}
			if slot == nil {
				return admission.Reject(admission.CodeSlotUnavailable)
			}
			if slot.ServeDate != cmd.ServeDate {
				return admission.Reject(admission.CodeInvalidTimeslot)
			}
			ok, err := service.slots.Reserve(txCtx, *cmd.TimeSlotID)
			if err != nil {
				return fmt.Errorf("reserve slot %d: %w", *cmd.TimeSlotID, err)
			}
			if !ok {
				return admission.Reject(admission.CodeSlotUnavailable)
			}
		}

		// Gate 4: stock. The item rows are already locked, so the daily-limit
		// read and the decrement can not race another attempt for the same
		// item. The limit counts persisted orders plus earlier lines of this
		// order, so one order repeating an item is capped too.
		pending := make(map[int64]int)
		for i, in := range cmd.Items {
			item := items[i]
			if !item.IsAvailable {
				return admission.RejectItem(admission.CodeInsufficientStock, item.ID)
			}
			if item.DailyLimit != nil {
				used, err := service.menus.DailyConsumed(txCtx, item.ID, cmd.ServeDate)
				if err != nil {
					return fmt.Errorf("sum daily consumption for item %d: %w", item.ID, err)
				}
				if used+pending[item.ID]+in.Quantity > *item.DailyLimit {
					return admission.RejectItem(admission.CodeInsufficientStock, item.ID)
				}
			}
			pending[item.ID] += in.Quantity
			if item.StockQuantity != nil {
				ok, err := service.menus.ConsumeStock(txCtx, item.ID, in.Quantity)
				if err != nil {
					return fmt.Errorf("consume stock for item %d: %w", item.ID, err)
				}
				if !ok {
					return admission.RejectItem(admission.CodeInsufficientStock, item.ID)
				}
			}
		}

		// Gate 5: allocate the order code from the date-scoped counter.
		seq, err := service.orders.NextDaySeq(txCtx, cmd.ServeDate)
		if err != nil {
			return err
		}

		// Gate 6: persist. Unit prices are the current menu prices resolved
		// in this transaction.
		order := &admission.Order{
			Code:             admission.FormatOrderCode(cmd.ServeDate, seq),
			ServeDate:        cmd.ServeDate,
			PickupAt:         pickupAt,
			SlotID:           cmd.TimeSlotID,
			DeliveryType:     cmd.DeliveryType,
			DeliveryLocation: cmd.DeliveryLocation,
			Department:       cmd.Department,
			CustomerName:     cmd.CustomerName,
			Status:           admission.StatusNew,
		}
		order.Items = make([]admission.LineItem, len(cmd.Items))
		for i, in := range cmd.Items {
			order.Items[i] = admission.LineItem{
				MenuItemID: in.MenuItemID,
				Title:      items[i].Title,
				Quantity:   in.Quantity,
				UnitPrice:  items[i].Price,
			}
		}
		order.SetTotalPrice()

		if err := service.orders.CreateOrder(txCtx, order); err != nil {
			return fmt.Errorf("persist order %s: %w", order.Code, err)
		}

		admitted = ports.OrderAdmitted{
			OrderCode:  order.Code,
			PickupAt:   order.PickupAt,
			TimeSlotID: order.SlotID,
			TotalPrice: order.TotalPrice,
		}
		admitted.Items = make([]ports.AdmittedItem, len(order.Items))
		for i, it := range order.Items {
			admitted.Items[i] = ports.AdmittedItem{
				MenuItemID: it.MenuItemID,
				Title:      it.Title,
				Quantity:   it.Quantity,
				UnitPrice:  it.UnitPrice,
			}
		}

		committed = order
		return nil
	})
	if err != nil {
		var rej *admission.Rejection
		if errors.As(err, &rej) {
			service.logger.Info(ctx, "order_rejected", "admission rejected", map[string]any{
				"code":         string(rej.Code),
				"serve_date":   cmd.ServeDate.String(),
				"menu_item_id": rej.MenuItemID,
			})
			return ports.OrderAdmitted{}, rej
		}
		service.logger.Error(ctx, "admission_failed", "admission attempt failed", err)
		return ports.OrderAdmitted{}, err
	}

	service.logger.Info(ctx, "order_admitted", "order admitted", map[string]any{
		"order_code":  admitted.OrderCode,
		"serve_date":  cmd.ServeDate.String(),
		"total_price": int64(admitted.TotalPrice),
	})
	service.notifyAfterCommit(ctx, committed)
	return admitted, nil
}

// AvailableSlots lazily generates the date's slot set and returns the slots
// still bookable at "now".
func (service *Service) AvailableSlots(ctx context.Context, date admission.ServiceDate) ([]admission.TimeSlot, error) {
	now := service.clock.Now()

	var bookable []admission.TimeSlot
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		slots, err := service.slots.EnsureGenerated(txCtx, date)
		if err != nil {
			return fmt.Errorf("generate slots for %s: %w", date, err)
		}
		for _, s := range slots {
			if s.Bookable(now) {
				bookable = append(bookable, s)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bookable, nil
}

// notifyAfterCommit queues the admitted event. Publishing is best-effort: a
// broker outage must not fail an already-valid admission, so errors are only
// logged.
func (service *Service) notifyAfterCommit(ctx context.Context, order *admission.Order) {
	if service.publisher == nil {
		return
	}
	msg := contracts.OrderAdmittedMessage{
		OrderCode:    order.Code,
		ServeDate:    order.ServeDate.String(),
		PickupAt:     order.PickupAt,
		DeliveryType: string(order.DeliveryType),
		TimeSlotID:   order.SlotID,
		TotalPrice:   int64(order.TotalPrice),
	}
	msg.Items = make([]contracts.AdmittedItemMessage, len(order.Items))
	for i, it := range order.Items {
		msg.Items[i] = contracts.AdmittedItemMessage{
			MenuItemID: it.MenuItemID,
			Title:      it.Title,
			Quantity:   it.Quantity,
			UnitPrice:  int64(it.UnitPrice),
		}
	}
	if err := service.publisher.PublishAdmitted(ctx, msg); err != nil {
		service.logger.Error(ctx, "publish_failed", "failed to publish admitted order event", err)
	}
}

// BadRequestError marks a malformed command. The HTTP layer maps it to 400;
// anything else that is not a taxonomy rejection is an internal failure.
type BadRequestError struct {
	msg string
}

func (e *BadRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &BadRequestError{msg: fmt.Sprintf(format, args...)}
}

// validateCommand rejects malformed requests before any gate runs. These are
// caller errors (HTTP 400), not admission rejections.
func validateCommand(cmd ports.PlaceOrderCommand) error {
	if cmd.ServeDate.IsZero() {
		return badRequest("serve_date is required")
	}
	if cmd.DeliveryType != admission.DeliveryPickup && cmd.DeliveryType != admission.DeliveryDesk {
		return badRequest("unknown delivery type: %q", cmd.DeliveryType)
	}
	if len(cmd.Items) == 0 {
		return badRequest("order must contain at least one item")
	}
	for i, in := range cmd.Items {
		if in.MenuItemID <= 0 {
			return badRequest("item %d: menu_item_id is required", i+1)
		}
		if in.Quantity < 1 {
			return badRequest("item %d: qty must be >= 1", i+1)
		}
	}
	if cmd.PickupAt == nil && cmd.RequestTime == "" {
		return badRequest("either pickup_at or request_time is required")
	}
	return nil
}

// resolvePickup normalizes the command to a pickup instant. A pickup on a
// different civil day than the service date can never be admitted.
func resolvePickup(cmd ports.PlaceOrderCommand) (time.Time, error) {
	if cmd.PickupAt != nil {
		pickup := cmd.PickupAt.In(admission.JST)
		if admission.DateOf(pickup) != cmd.ServeDate {
			return time.Time{}, admission.Reject(admission.CodeInvalidTimeslot)
		}
		return pickup, nil
	}
	pickup, err := admission.ParseSlotLabel(cmd.RequestTime, cmd.ServeDate)
	if err != nil {
		// malformed legacy labels are indistinguishable from unreachable
		// slots as far as the caller is concerned
		return time.Time{}, admission.Reject(admission.CodeInvalidTimeslot)
	}
	return pickup, nil
}
