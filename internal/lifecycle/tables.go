package lifecycle

const (
	ActionConfirm       Action = "confirm"
	ActionProcess       Action = "process"
	ActionMarkReady     Action = "mark_ready"
	ActionDispatch      Action = "dispatch"
	ActionDeliver       Action = "deliver"
	ActionHold          Action = "hold"
	ActionRelease       Action = "release"
	ActionCancel        Action = "cancel"
	ActionStart         Action = "start"
	ActionComplete      Action = "complete"
	ActionReschedule    Action = "reschedule"
	ActionSchedule      Action = "schedule"
	ActionMarkNoShow    Action = "mark_no_show"
	ActionCollectSample Action = "collect_sample"
	ActionStartAnalysis Action = "start_analysis"
	ActionPublishReport Action = "publish_report"
	ActionRebook        Action = "rebook"
	ActionRejectSample  Action = "reject_sample"
	ActionAssign        Action = "assign"
	ActionPickup        Action = "pickup"
	ActionStartTransit  Action = "start_transit"
	ActionReportIssue   Action = "report_issue"
	ActionResume        Action = "resume"
	ActionReject        Action = "reject"
)

const (
	OrderPending          Status = "PENDING"
	OrderConfirmed        Status = "CONFIRMED"
	OrderProcessing       Status = "PROCESSING"
	OrderReadyForDelivery Status = "READY_FOR_DELIVERY"
	OrderOutForDelivery   Status = "OUT_FOR_DELIVERY"
	OrderDelivered        Status = "DELIVERED"
	OrderOnHold           Status = "ON_HOLD"
	OrderCancelled        Status = "CANCELLED"
)

const (
	AppointmentScheduled   Status = "SCHEDULED"
	AppointmentConfirmed   Status = "CONFIRMED"
	AppointmentInProgress  Status = "IN_PROGRESS"
	AppointmentCompleted   Status = "COMPLETED"
	AppointmentCancelled   Status = "CANCELLED"
	AppointmentRescheduled Status = "RESCHEDULED"
	AppointmentNoShow      Status = "NO_SHOW"
)

const (
	LabBooked          Status = "BOOKED"
	LabSampleCollected Status = "SAMPLE_COLLECTED"
	LabInProgress      Status = "IN_PROGRESS"
	LabReportReady     Status = "REPORT_READY"
	LabRescheduled     Status = "RESCHEDULED"
	LabSampleRejected  Status = "SAMPLE_REJECTED"
	LabCancelled       Status = "CANCELLED"
)

const (
	DeliveryPending       Status = "PENDING"
	DeliveryAssigned      Status = "ASSIGNED"
	DeliveryPickedUp      Status = "PICKED_UP"
	DeliveryInTransit     Status = "IN_TRANSIT"
	DeliveryDelivered     Status = "DELIVERED"
	DeliveryIssueReported Status = "ISSUE_REPORTED"
	DeliveryCancelled     Status = "CANCELLED"
)

const (
	PrescriptionUploaded  Status = "UPLOADED"
	PrescriptionProcessed Status = "PROCESSED"
	PrescriptionRejected  Status = "REJECTED"
)

var (
	orderTable = NewTable(KindOrder, OrderPending,
		[]Rule{
			{From: []Status{OrderPending}, Action: ActionConfirm, To: OrderConfirmed},
			{From: []Status{OrderConfirmed}, Action: ActionProcess, To: OrderProcessing},
			{From: []Status{OrderProcessing}, Action: ActionMarkReady, To: OrderReadyForDelivery},
			{From: []Status{OrderReadyForDelivery}, Action: ActionDispatch, To: OrderOutForDelivery},
			{From: []Status{OrderOutForDelivery}, Action: ActionDeliver, To: OrderDelivered},
			{From: []Status{OrderPending}, Action: ActionHold, To: OrderOnHold},
			{From: []Status{OrderOnHold}, Action: ActionRelease, To: OrderPending},
			{
				From: []Status{
					OrderPending, OrderConfirmed, OrderProcessing,
					OrderReadyForDelivery, OrderOutForDelivery, OrderOnHold,
				},
				Action: ActionCancel,
				To:     OrderCancelled,
			},
		},
		[]Status{OrderDelivered, OrderCancelled},
		map[Status]Milestone{
			OrderConfirmed: MilestoneConfirmed,
			OrderDelivered: MilestoneDelivered,
			OrderCancelled: MilestoneCancelled,
		},
	)

	appointmentTable = NewTable(KindAppointment, AppointmentScheduled,
		[]Rule{
			{From: []Status{AppointmentScheduled}, Action: ActionConfirm, To: AppointmentConfirmed},
			{From: []Status{AppointmentConfirmed}, Action: ActionStart, To: AppointmentInProgress},
			{From: []Status{AppointmentInProgress}, Action: ActionComplete, To: AppointmentCompleted},
			{From: []Status{AppointmentScheduled}, Action: ActionReschedule, To: AppointmentRescheduled},
			{From: []Status{AppointmentRescheduled}, Action: ActionSchedule, To: AppointmentScheduled},
			{From: []Status{AppointmentScheduled, AppointmentConfirmed}, Action: ActionMarkNoShow, To: AppointmentNoShow},
			{
				From:   []Status{AppointmentScheduled, AppointmentConfirmed, AppointmentInProgress, AppointmentRescheduled},
				Action: ActionCancel,
				To:     AppointmentCancelled,
			},
		},
		[]Status{AppointmentCompleted, AppointmentCancelled, AppointmentNoShow},
		map[Status]Milestone{
			AppointmentConfirmed: MilestoneConfirmed,
			AppointmentCompleted: MilestoneCompleted,
			AppointmentCancelled: MilestoneCancelled,
		},
	)

	labBookingTable = NewTable(KindLabBooking, LabBooked,
		[]Rule{
			{From: []Status{LabBooked}, Action: ActionCollectSample, To: LabSampleCollected},
			{From: []Status{LabSampleCollected}, Action: ActionStartAnalysis, To: LabInProgress},
			{From: []Status{LabInProgress}, Action: ActionPublishReport, To: LabReportReady},
			{From: []Status{LabBooked, LabSampleCollected, LabInProgress}, Action: ActionReschedule, To: LabRescheduled},
			{From: []Status{LabRescheduled}, Action: ActionRebook, To: LabBooked},
			{From: []Status{LabSampleCollected}, Action: ActionRejectSample, To: LabSampleRejected},
			{From: []Status{LabBooked, LabRescheduled}, Action: ActionCancel, To: LabCancelled},
		},
		[]Status{LabReportReady, LabSampleRejected, LabCancelled},
		map[Status]Milestone{
			LabReportReady:    MilestoneCompleted,
			LabSampleRejected: MilestoneRejected,
			LabCancelled:      MilestoneCancelled,
		},
	)

	deliveryTable = NewTable(KindDelivery, DeliveryPending,
		[]Rule{
			{From: []Status{DeliveryPending}, Action: ActionAssign, To: DeliveryAssigned},
			{From: []Status{DeliveryAssigned}, Action: ActionPickup, To: DeliveryPickedUp},
			{From: []Status{DeliveryPickedUp}, Action: ActionStartTransit, To: DeliveryInTransit},
			{From: []Status{DeliveryInTransit}, Action: ActionDeliver, To: DeliveryDelivered},
			{
				From:   []Status{DeliveryPending, DeliveryAssigned, DeliveryPickedUp, DeliveryInTransit},
				Action: ActionReportIssue,
				To:     DeliveryIssueReported,
				Hold:   true,
			},
			{From: []Status{DeliveryIssueReported}, Action: ActionResume, To: StatusHeld},
			{From: []Status{DeliveryPending, DeliveryIssueReported}, Action: ActionCancel, To: DeliveryCancelled},
		},
		[]Status{DeliveryDelivered, DeliveryCancelled},
		map[Status]Milestone{
			DeliveryAssigned:  MilestoneAssigned,
			DeliveryPickedUp:  MilestonePickedUp,
			DeliveryDelivered: MilestoneDelivered,
			DeliveryCancelled: MilestoneCancelled,
		},
	)

	prescriptionTable = NewTable(KindPrescription, PrescriptionUploaded,
		[]Rule{
			{From: []Status{PrescriptionUploaded}, Action: ActionProcess, To: PrescriptionProcessed},
			{From: []Status{PrescriptionUploaded}, Action: ActionReject, To: PrescriptionRejected},
		},
		[]Status{PrescriptionProcessed, PrescriptionRejected},
		map[Status]Milestone{
			PrescriptionProcessed: MilestoneProcessed,
			PrescriptionRejected:  MilestoneRejected,
		},
	)
)

func OrderTable() *Table        { return orderTable }
func AppointmentTable() *Table  { return appointmentTable }
func LabBookingTable() *Table   { return labBookingTable }
func DeliveryTable() *Table     { return deliveryTable }
func PrescriptionTable() *Table { return prescriptionTable }

// DefaultTables returns every built-in table.
func DefaultTables() []*Table {
	return []*Table{orderTable, appointmentTable, labBookingTable, deliveryTable, prescriptionTable}
}
