package notify

var (
	_ Notifier = Log{}
	_ Notifier = SMTP{}
	_ Notifier = (*Queue)(nil)
)
