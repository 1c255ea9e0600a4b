package wire

// Method names used across the client. Grouped by DevTools domain; this is
// not an exhaustive binding of the protocol, only the surface this client
// exercises (spec.md §6: "No modification to the protocol").
const (
	MethodTargetSetDiscoverTargets = "Target.setDiscoverTargets"
	MethodTargetSetAutoAttach      = "Target.setAutoAttach"
	MethodTargetAttachToTarget     = "Target.attachToTarget"
	MethodTargetDetachFromTarget   = "Target.detachFromTarget"
	MethodTargetCreateTarget       = "Target.createTarget"
	MethodTargetCloseTarget        = "Target.closeTarget"
	MethodTargetGetTargets         = "Target.getTargets"

	MethodPageNavigate           = "Page.navigate"
	MethodPageReload             = "Page.reload"
	MethodPageEnable             = "Page.enable"
	MethodPageSetDownloadBehavior = "Page.setDownloadBehavior"
	MethodPageSetInterceptFileChooser = "Page.setInterceptFileChooserDialog"
	MethodPageHandleFileChooser   = "Page.handleFileChooserIntercept"

	MethodDOMEnable            = "DOM.enable"
	MethodDOMGetDocument       = "DOM.getDocument"
	MethodDOMQuerySelector     = "DOM.querySelector"
	MethodDOMQuerySelectorAll  = "DOM.querySelectorAll"
	MethodDOMResolveNode       = "DOM.resolveNode"
	MethodDOMRequestNode       = "DOM.requestNode"
	MethodDOMDescribeNode      = "DOM.describeNode"
	MethodDOMSetFileInputFiles = "DOM.setFileInputFiles"
	MethodDOMGetBoxModel       = "DOM.getBoxModel"
	MethodDOMPerformSearch     = "DOM.performSearch"
	MethodDOMGetSearchResults  = "DOM.getSearchResults"

	MethodRuntimeEnable         = "Runtime.enable"
	MethodRuntimeCallFunctionOn = "Runtime.callFunctionOn"
	MethodRuntimeEvaluate       = "Runtime.evaluate"

	MethodNetworkEnable = "Network.enable"

	MethodInputDispatchMouseEvent    = "Input.dispatchMouseEvent"
	MethodInputDispatchKeyEvent      = "Input.dispatchKeyEvent"
	MethodInputInsertText            = "Input.insertText"

	MethodInspectorEnable = "Inspector.enable"

	MethodBrowserGetVersion = "Browser.getVersion"
)

// Event (notification) method names.
const (
	EventTargetCreated       = "Target.targetCreated"
	EventTargetInfoChanged   = "Target.targetInfoChanged"
	EventTargetCrashed       = "Target.targetCrashed"
	EventTargetDestroyed     = "Target.targetDestroyed"
	EventTargetAttachedTo    = "Target.attachedToTarget"
	EventTargetDetachedFrom  = "Target.detachedFromTarget"

	EventPageFrameNavigated  = "Page.frameNavigated"
	// EventPageNavigatedWithinDocument fires for same-document navigations
	// (hash changes, History API) as distinct from EventPageFrameNavigated's
	// full-document replacement. Deliberately not subscribed anywhere: the
	// locator cache only invalidates on a real document replacement.
	EventPageNavigatedWithinDocument = "Page.navigatedWithinDocument"
	EventPageLoadEventFired  = "Page.loadEventFired"
	EventPageDOMContentEventFired = "Page.domContentEventFired"
	EventPageDownloadWillBegin = "Page.downloadWillBegin"
	EventPageDownloadProgress  = "Page.downloadProgress"
	EventPageFileChooserOpened = "Page.fileChooserOpened"

	EventNetworkRequestWillBeSent = "Network.requestWillBeSent"
	EventNetworkLoadingFinished   = "Network.loadingFinished"
	EventNetworkLoadingFailed     = "Network.loadingFailed"

	EventInspectorDetached = "Inspector.detached"
)

// DefaultSubscribedDomains are the protocol domains enabled on connect
// unless the caller's configuration overrides them (spec.md §6,
// subscribed_domains).
var DefaultSubscribedDomains = []string{"Page", "DOM", "Runtime", "Network", "Target", "Inspector"}
