package errortypes

// Timeout should be used when a provider call did not complete before its deadline.
type Timeout struct {
	Message string
}

func (err *Timeout) Error() string {
	return err.Message
}

func (err *Timeout) Code() int {
	return TimeoutErrorCode
}

func (err *Timeout) Severity() Severity {
	return SeverityFatal
}

// BadInput should be used when a request to the provider cannot be built from the given arguments.
type BadInput struct {
	Message string
}

func (err *BadInput) Error() string {
	return err.Message
}

func (err *BadInput) Code() int {
	return BadInputErrorCode
}

func (err *BadInput) Severity() Severity {
	return SeverityFatal
}

// BadServerResponse should be used when returning errors which are caused by bad/unexpected behavior on the auction server.
type BadServerResponse struct {
	Message string
}

func (err *BadServerResponse) Error() string {
	return err.Message
}

func (err *BadServerResponse) Code() int {
	return BadServerResponseErrorCode
}

func (err *BadServerResponse) Severity() Severity {
	return SeverityFatal
}

// Network is used when the request never produced an HTTP response.
type Network struct {
	Message string
}

func (err *Network) Error() string {
	return err.Message
}

func (err *Network) Code() int {
	return NetworkErrorCode
}

func (err *Network) Severity() Severity {
	return SeverityFatal
}

// NoFill is returned when the auction completed without a usable native bid.
//
// NoFill errors are expected during normal operation, so they carry a warning severity.
type NoFill struct {
	Message string
}

func (err *NoFill) Error() string {
	return err.Message
}

func (err *NoFill) Code() int {
	return NoFillErrorCode
}

func (err *NoFill) Severity() Severity {
	return SeverityWarning
}

// Configuration flags a slot or provider setting that prevents the feature from running.
type Configuration struct {
	Message string
}

func (err *Configuration) Error() string {
	return err.Message
}

func (err *Configuration) Code() int {
	return ConfigurationErrorCode
}

func (err *Configuration) Severity() Severity {
	return SeverityFatal
}

// Binding is used when the provider rejects a widget registration. Rendering continues
// with the remaining fields.
type Binding struct {
	Message string
}

func (err *Binding) Error() string {
	return err.Message
}

func (err *Binding) Code() int {
	return BindingErrorCode
}

func (err *Binding) Severity() Severity {
	return SeverityWarning
}

// Warning is a generic non-fatal error.
type Warning struct {
	Message     string
	WarningCode int
}

func (err *Warning) Error() string {
	return err.Message
}

func (err *Warning) Code() int {
	return err.WarningCode
}

func (err *Warning) Severity() Severity {
	return SeverityWarning
}
