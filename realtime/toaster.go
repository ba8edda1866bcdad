package realtime

// Toaster raises toasts for one user
type Toaster interface {
	Error(title, message string)
	Success(title, message string)
}

// UserToaster publishes toasts addressed to a single user
type UserToaster struct {
	Publisher Publisher
	UserID    uint
}

func (t UserToaster) Error(title, message string) {
	t.Publisher.PublishToast(t.UserID, Toast{Level: ToastError, Title: title, Message: message})
}

func (t UserToaster) Success(title, message string) {
	t.Publisher.PublishToast(t.UserID, Toast{Level: ToastSuccess, Title: title, Message: message})
}
