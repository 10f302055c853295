package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"golang.org/x/time/rate"

	"gatewaybot/internal/batch"
	"gatewaybot/internal/browser"
	"gatewaybot/internal/config"
	"gatewaybot/internal/convstate"
	"gatewaybot/internal/foldertree"
	"gatewaybot/internal/indexrender"
	"gatewaybot/internal/ingest"
	"gatewaybot/internal/logger"
	"gatewaybot/internal/procutil"
	"gatewaybot/internal/store"
	"gatewaybot/internal/ytdl"
)

// dispatchCommand parses a leading-slash message and runs the matching
// handler. Unknown commands are ignored rather than answered, matching how
// a gateway meant to sit in group chats should behave.
func (a *App) dispatchCommand(ctx context.Context, peer tg.InputPeerClass, userID int64, text string) error {
	fields := strings.Fields(text)
	cmd := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	if at := strings.Index(cmd, "@"); at >= 0 {
		cmd = cmd[:at]
	}
	args := fields[1:]

	if cmd != "start" && !a.isOwnerOrSudo(userID) && !a.passesForceSub(ctx, userID) {
		return a.sendText(ctx, peer, "Join the required channel first, then try again.")
	}

	switch cmd {
	case "start":
		return a.cmdStart(ctx, peer, userID)
	case "index":
		return a.cmdIndex(ctx, peer, userID, args)
	case "createindex":
		return a.cmdCreateIndex(ctx, peer, userID, args)
	case "browse":
		return a.cmdBrowse(ctx, peer, userID)
	case "batch":
		return a.cmdBatch(ctx, peer, userID)
	case "single":
		return a.cmdSingle(ctx, peer, userID)
	case "cancel":
		return a.cmdCancel(ctx, peer, userID)
	case "stop":
		return a.cmdStop(ctx, peer, userID)
	case "login":
		return a.cmdLogin(ctx, peer, userID)
	case "logout":
		return a.cmdLogout(ctx, peer, userID)
	case "setbot":
		return a.cmdSetBot(ctx, peer, userID, args)
	case "rembot":
		return a.cmdRemBot(ctx, peer, userID)
	case "settings":
		return a.cmdSettings(ctx, peer, userID)
	case "plans", "pay":
		return a.cmdPlans(ctx, peer, userID)
	case "mystatus":
		return a.cmdMyStatus(ctx, peer, userID)
	case "transfer":
		return a.cmdTransfer(ctx, peer, userID, args)
	case "add":
		return a.ownerOnly(ctx, peer, userID, func() error { return a.cmdAdd(ctx, peer, args) })
	case "rem":
		return a.ownerOnly(ctx, peer, userID, func() error { return a.cmdRem(ctx, peer, args) })
	case "users":
		return a.ownerOnly(ctx, peer, userID, func() error { return a.cmdUsers(ctx, peer) })
	case "broadcast":
		return a.ownerOnly(ctx, peer, userID, func() error { return a.cmdBroadcast(ctx, peer, args) })
	case "botstats":
		return a.ownerOnly(ctx, peer, userID, func() error { return a.cmdBotStats(ctx, peer) })
	case "ytdl":
		return a.cmdYtdl(ctx, peer, userID, args, false)
	case "adl":
		return a.cmdYtdl(ctx, peer, userID, args, true)
	case "update":
		return a.ownerOnly(ctx, peer, userID, func() error { return a.cmdUpdate(ctx, peer) })
	case "logs":
		return a.ownerOnly(ctx, peer, userID, func() error { return a.cmdLogs(ctx, peer) })
	case "status":
		return a.ownerOnly(ctx, peer, userID, func() error { return a.cmdStatus(ctx, peer) })
	case "sh", "shell", "bash":
		return a.ownerOnly(ctx, peer, userID, func() error { return a.cmdShell(ctx, peer, args) })
	case "addplan":
		return a.ownerOnly(ctx, peer, userID, func() error { return a.cmdAddPlan(ctx, peer, args) })
	case "delplan":
		return a.ownerOnly(ctx, peer, userID, func() error { return a.cmdDelPlan(ctx, peer, args) })
	case "listplans":
		return a.ownerOnly(ctx, peer, userID, func() error { return a.cmdListPlans(ctx, peer) })
	case "cleanservice":
		return a.ownerOnly(ctx, peer, userID, func() error { return a.cmdCleanService(ctx, peer, args) })
	case "delfolder":
		return a.ownerOnly(ctx, peer, userID, func() error { return a.cmdDelFolder(ctx, peer, args) })
	default:
		return nil
	}
}

// passesForceSub reports whether userID satisfies the optional
// mandatory-join gate. Disabled (0) passes everyone; a check the bot
// cannot perform (channel not resolvable, RPC failure other than a plain
// not-a-participant) fails open rather than locking the bot up.
func (a *App) passesForceSub(ctx context.Context, userID int64) bool {
	if a.cfg.ForceSub == 0 {
		return true
	}
	channelID := ingest.CanonicalChannelID(a.cfg.ForceSub)
	peer, err := a.peers.ResolveChannelID(channelID)
	if err != nil {
		return true
	}
	channelPeer, ok := peer.(*tg.InputPeerChannel)
	if !ok {
		return true
	}
	userPeer, err := a.peers.ResolveUserID(ctx, userID)
	if err != nil {
		return true
	}
	_, err = a.bot.API().ChannelsGetParticipant(ctx, &tg.ChannelsGetParticipantRequest{
		Channel:     &tg.InputChannel{ChannelID: channelPeer.ChannelID, AccessHash: channelPeer.AccessHash},
		Participant: userPeer,
	})
	if err != nil {
		if tgerr.Is(err, "USER_NOT_PARTICIPANT") {
			logger.Debugf("forcesub: user %d not in channel %d: %v", userID, channelID, err)
			return false
		}
		logger.Warnf("forcesub: check user %d in channel %d: %v", userID, channelID, err)
		return true
	}
	return true
}

func (a *App) isOwnerOrSudo(userID int64) bool {
	if userID == a.cfg.OwnerID {
		return true
	}
	for _, id := range a.cfg.SudoUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func (a *App) ownerOnly(ctx context.Context, peer tg.InputPeerClass, userID int64, fn func() error) error {
	if !a.isOwnerOrSudo(userID) {
		return a.sendText(ctx, peer, "This command is restricted to the bot owner.")
	}
	return fn()
}

func (a *App) cmdStart(ctx context.Context, peer tg.InputPeerClass, userID int64) error {
	a.store.UpsertUser(ctx, userID, "")
	return a.sendText(ctx, peer,
		"Welcome. Use /browse to explore indexed channels, /batch to bulk-download linked posts, "+
			"or /login to connect your own account for content outside this bot's reach.")
}

func (a *App) cmdIndex(ctx context.Context, peer tg.InputPeerClass, userID int64, args []string) error {
	if len(args) < 1 {
		return a.sendText(ctx, peer, "Usage: /index <chatID> [uptoMsgID]")
	}
	chatID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return a.sendText(ctx, peer, "Invalid chat id.")
	}
	chatID = ingest.CanonicalChannelID(chatID)
	uptoMsgID := 0
	if len(args) > 1 {
		uptoMsgID, _ = strconv.Atoi(args[1])
	}
	withFolder, withoutFolder, err := a.ingestor.IndexChannel(ctx, a.scanAdapter(), chatID, uptoMsgID)
	report := fmt.Sprintf("Indexed %d files into folders, %d without a topic.", withFolder, withoutFolder)
	if err != nil {
		logger.Warnf("index: partial failures for chat %d: %v", chatID, err)
		report += " Some messages could not be indexed; see the log for details."
	}
	if err := a.sendText(ctx, peer, report); err != nil {
		return err
	}

	idx, err := a.tree.BuildTopicIndex(ctx, chatID)
	if err != nil || len(idx.RootIDs) == 0 {
		return nil
	}
	for _, chunk := range a.renderIndexChunks(idx, browser.CleanChatID(chatID)) {
		if err := a.sendText(ctx, peer, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) cmdCreateIndex(ctx context.Context, peer tg.InputPeerClass, userID int64, args []string) error {
	if len(args) < 1 {
		return a.sendText(ctx, peer, "Usage: /createindex <chatID> [uptoMsgID]")
	}
	chatID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return a.sendText(ctx, peer, "Invalid chat id.")
	}
	chatID = ingest.CanonicalChannelID(chatID)
	uptoMsgID := 0
	if len(args) > 1 {
		uptoMsgID, _ = strconv.Atoi(args[1])
	}
	idx, err := a.ingestor.PreviewIndex(ctx, a.scanAdapter(), chatID, uptoMsgID)
	if err != nil {
		return a.sendText(ctx, peer, fmt.Sprintf("Preview failed: %v", err))
	}
	cleanChat := browser.CleanChatID(chatID)
	for _, chunk := range a.renderIndexChunks(idx, cleanChat) {
		if err := a.sendText(ctx, peer, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) cmdBrowse(ctx context.Context, peer tg.InputPeerClass, userID int64) error {
	channels, err := ingest.ListAuthorized(ctx, a.store)
	if err != nil {
		return a.sendText(ctx, peer, "Could not load channels right now.")
	}
	refs := make([]browser.ChannelRef, 0, len(channels))
	for _, c := range channels {
		title, _ := a.peers.Title(c)
		if title == "" {
			title = fmt.Sprintf("Channel %d", c)
		}
		refs = append(refs, browser.ChannelRef{ChatID: c, Title: title})
	}
	_, err = a.sendView(ctx, peer, a.browserCtl.ChannelsView(refs))
	return err
}

func (a *App) cmdBatch(ctx context.Context, peer tg.InputPeerClass, userID int64) error {
	if err := a.checkBatchPreflight(ctx, userID); err != nil {
		return a.sendText(ctx, peer, userMessageFor(err))
	}
	a.conv.Set(userID, convstate.BatchAwaitingStart{})
	return a.sendText(ctx, peer, "Send the first message link to start the batch from.")
}

func (a *App) cmdSingle(ctx context.Context, peer tg.InputPeerClass, userID int64) error {
	if err := a.checkBatchPreflight(ctx, userID); err != nil {
		return a.sendText(ctx, peer, userMessageFor(err))
	}
	a.conv.Set(userID, convstate.BatchAwaitingSingle{})
	return a.sendText(ctx, peer, "Send the message link to fetch.")
}

// cmdCancel implements the login > settings > batch unwind precedence: only
// the first in-progress flow found is cancelled per invocation.
func (a *App) cmdCancel(ctx context.Context, peer tg.InputPeerClass, userID int64) error {
	switch {
	case a.conv.LoginInProgress(userID):
		a.releaseLoginHandle(userID)
		a.conv.Clear(userID)
		return a.sendText(ctx, peer, "Login cancelled.")
	case a.conv.SettingsInProgress(userID):
		a.conv.Clear(userID)
		return a.sendText(ctx, peer, "Settings edit cancelled.")
	case a.conv.BatchInProgress(userID):
		a.conv.Clear(userID)
		a.tracker.RequestCancel(userID)
		return a.sendText(ctx, peer, "Batch cancelled.")
	case a.tracker.RequestCancel(userID):
		// A run recovered from the durable snapshot has no conversation
		// state, but its cancel flag still works.
		return a.sendText(ctx, peer, "Batch cancelled.")
	default:
		return a.sendText(ctx, peer, "Nothing to cancel.")
	}
}

func (a *App) cmdStop(ctx context.Context, peer tg.InputPeerClass, userID int64) error {
	a.tracker.RequestCancel(userID)
	return a.sendText(ctx, peer, "Stopping after the current file.")
}

func (a *App) cmdLogin(ctx context.Context, peer tg.InputPeerClass, userID int64) error {
	a.conv.Set(userID, convstate.LoginPhone{})
	return a.sendText(ctx, peer, "Send your phone number in international format (e.g. +15551234567).")
}

func (a *App) cmdLogout(ctx context.Context, peer tg.InputPeerClass, userID int64) error {
	a.registry.InvalidateSession(userID)
	a.store.DeleteSession(ctx, userID)
	return a.sendText(ctx, peer, "Logged out of your account session.")
}

func (a *App) cmdSetBot(ctx context.Context, peer tg.InputPeerClass, userID int64, args []string) error {
	if len(args) < 1 {
		return a.sendText(ctx, peer, "Usage: /setbot <token>")
	}
	cipher, err := a.vault.Encrypt(args[0])
	if err != nil {
		return a.sendText(ctx, peer, "Could not store that token.")
	}
	if err := a.store.SaveBotToken(ctx, userID, cipher); err != nil {
		return a.sendText(ctx, peer, "Could not store that token.")
	}
	a.registry.InvalidateBot(userID)
	return a.sendText(ctx, peer, "User-bot token saved.")
}

func (a *App) cmdRemBot(ctx context.Context, peer tg.InputPeerClass, userID int64) error {
	a.registry.InvalidateBot(userID)
	a.store.DeleteBotToken(ctx, userID)
	return a.sendText(ctx, peer, "User-bot removed.")
}

func (a *App) cmdSettings(ctx context.Context, peer tg.InputPeerClass, userID int64) error {
	a.conv.Set(userID, convstate.SettingsField{})
	return a.sendText(ctx, peer,
		"Settings: send one of\n"+
			"rename <tag>\ncaption <text>\nreplace <from>=<to>\ndeleteword <word>\nchatid <id>\n"+
			"to change a field, or /cancel to stop.")
}

func (a *App) cmdPlans(ctx context.Context, peer tg.InputPeerClass, userID int64) error {
	plans, err := a.payment.Plans(ctx)
	if err != nil || len(plans) == 0 {
		return a.sendText(ctx, peer, "No plans are configured right now.")
	}
	var rows []browser.Row
	for _, p := range plans {
		rows = append(rows, browser.Row{{Text: fmt.Sprintf("%s — %d★", p.Label, p.Stars), Data: fmt.Sprintf("p_%s", p.Key)}})
	}
	_, err = a.sendView(ctx, peer, browser.View{Header: "Choose a plan:", Rows: rows})
	return err
}

func (a *App) cmdMyStatus(ctx context.Context, peer tg.InputPeerClass, userID int64) error {
	remaining, err := a.quota.Remaining(ctx, userID)
	if err != nil {
		return a.sendText(ctx, peer, "Could not read your status right now.")
	}
	isPremium, _ := a.quota.IsPremium(ctx, userID)
	used, _ := a.store.UsageToday(ctx, userID)
	status := "free"
	if isPremium {
		status = "premium"
	}
	if remaining < 0 {
		return a.sendText(ctx, peer, fmt.Sprintf("Plan: %s\nUsed today: %d\nRemaining: unlimited", status, used))
	}
	return a.sendText(ctx, peer, fmt.Sprintf("Plan: %s\nUsed today: %d\nRemaining today: %d", status, used, remaining))
}

func (a *App) cmdTransfer(ctx context.Context, peer tg.InputPeerClass, userID int64, args []string) error {
	if len(args) < 1 {
		return a.sendText(ctx, peer, "Usage: /transfer <userID>")
	}
	toID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return a.sendText(ctx, peer, "Invalid user id.")
	}
	if already, _ := a.quota.IsPremium(ctx, toID); already {
		return a.sendText(ctx, peer, "That user already has an active premium plan.")
	}
	expiry, err := a.quota.TransferPremium(ctx, userID, toID)
	if err != nil {
		return a.sendText(ctx, peer, fmt.Sprintf("Transfer failed: %v", err))
	}
	return a.sendText(ctx, peer, fmt.Sprintf("Premium transferred; expires %s.", expiry.Format(time.RFC3339)))
}

func (a *App) cmdAdd(ctx context.Context, peer tg.InputPeerClass, args []string) error {
	if len(args) < 3 {
		return a.sendText(ctx, peer, "Usage: /add <userID> <value> <min|hours|days|weeks|month|year|decades>")
	}
	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return a.sendText(ctx, peer, "Invalid user id.")
	}
	value, err := strconv.Atoi(args[1])
	if err != nil {
		return a.sendText(ctx, peer, "Invalid duration value.")
	}
	unit := config.DurationUnit(strings.ToLower(args[2]))
	expiry, err := a.store.AddPremium(ctx, targetID, value, unit)
	if err != nil {
		return a.sendText(ctx, peer, fmt.Sprintf("Could not grant premium: %v", err))
	}
	if target, rerr := a.peers.ResolveUserID(ctx, targetID); rerr == nil {
		_ = a.sendText(ctx, target, fmt.Sprintf("You are now a premium member until %s.", expiry.Format(time.RFC1123)))
	}
	return a.sendText(ctx, peer, fmt.Sprintf("User %d is premium until %s.", targetID, expiry.Format(time.RFC1123)))
}

func (a *App) cmdRem(ctx context.Context, peer tg.InputPeerClass, args []string) error {
	if len(args) < 1 {
		return a.sendText(ctx, peer, "Usage: /rem <userID>")
	}
	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return a.sendText(ctx, peer, "Invalid user id.")
	}
	if err := a.store.RevokePremium(ctx, targetID); err != nil {
		return a.sendText(ctx, peer, "Could not revoke premium.")
	}
	return a.sendText(ctx, peer, fmt.Sprintf("Premium revoked for user %d.", targetID))
}

func (a *App) cmdUsers(ctx context.Context, peer tg.InputPeerClass) error {
	total, err := a.store.CountUsers(ctx)
	if err != nil {
		return a.sendText(ctx, peer, "Could not count users.")
	}
	grants, err := a.store.ListPremium(ctx)
	if err != nil {
		return a.sendText(ctx, peer, "Could not list premium users.")
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d known users, %d premium:\n", total, len(grants))
	for _, g := range grants {
		fmt.Fprintf(&sb, "• %d — until %s\n", g.UserID, g.ExpireAt.Format("2006-01-02 15:04"))
	}
	return a.sendText(ctx, peer, sb.String())
}

func (a *App) cmdBroadcast(ctx context.Context, peer tg.InputPeerClass, args []string) error {
	if len(args) == 0 {
		return a.sendText(ctx, peer, "Usage: /broadcast <message>")
	}
	text := strings.Join(args, " ")
	ids, err := a.store.ListUserIDs(ctx)
	if err != nil {
		return a.sendText(ctx, peer, "Could not load the user list.")
	}

	// Pace the fan-out well under Telegram's ~30 msg/s bot ceiling so a
	// large user list doesn't trip a flood wait mid-broadcast.
	limiter := rate.NewLimiter(rate.Limit(20), 1)
	sent := 0
	for _, id := range ids {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		target, err := a.peers.ResolveUserID(ctx, id)
		if err != nil {
			continue
		}
		if err := a.sendText(ctx, target, text); err == nil {
			sent++
		}
	}
	return a.sendText(ctx, peer, fmt.Sprintf("Broadcast sent to %d/%d users.", sent, len(ids)))
}

func (a *App) cmdBotStats(ctx context.Context, peer tg.InputPeerClass) error {
	users, _ := a.store.CountUsers(ctx)
	premium, _ := a.store.CountPremium(ctx)
	return a.sendText(ctx, peer, fmt.Sprintf("Users: %d\nPremium: %d", users, premium))
}

func (a *App) cmdYtdl(ctx context.Context, peer tg.InputPeerClass, userID int64, args []string, audioOnly bool) error {
	if len(args) < 1 {
		return a.sendText(ctx, peer, "Usage: /ytdl <url>")
	}
	remaining, err := a.quota.Remaining(ctx, userID)
	if err != nil {
		return a.sendText(ctx, peer, "Could not check your quota right now.")
	}
	if remaining == 0 {
		return a.sendText(ctx, peer, "You've reached your daily limit; try again tomorrow or see /plans.")
	}
	if !a.ytdl.TryAcquire(userID) {
		return a.sendText(ctx, peer, "A download is already running for you.")
	}
	defer a.ytdl.Release(userID)
	defer a.ytdl.Cleanup(userID)

	info, err := a.ytdl.ExtractInfo(ctx, args[0])
	if err != nil {
		return a.sendText(ctx, peer, "Could not read that URL; check it and try again.")
	}
	_ = a.sendText(ctx, peer, fmt.Sprintf("Downloading %s (%s)…", info.Title, formatSize(info.ApproxSize())))

	result, err := a.ytdl.Download(ctx, userID, args[0], audioOnly, nil)
	if err != nil {
		return a.sendText(ctx, peer, fmt.Sprintf("Download failed: %v", err))
	}

	settings, _ := a.store.GetSettings(ctx, userID)
	dest, derr := batch.ResolveDestination(userID, settings.ChatID)
	if derr != nil {
		dest = batch.Destination{ChatID: userID}
	}

	kind := batch.UploadVideo
	if audioOnly {
		kind = batch.UploadAudio
	}
	plan := batch.UploadPlan{
		LocalPath:   result.FilePath,
		Filename:    batch.SanitizeFilename(result.Info.Title + "." + resultExt(result, audioOnly)),
		Caption:     result.Info.Title,
		Kind:        kind,
		Destination: dest,
	}
	adapter := NewTelegramAdapter(a.bot.API(), a.peers)
	if err := adapter.Upload(ctx, plan); err != nil {
		return a.sendText(ctx, peer, fmt.Sprintf("Upload failed: %v", err))
	}
	if err := a.quota.Consume(ctx, userID); err != nil {
		logger.Warnf("ytdl: usage increment for user %d: %v", userID, err)
	}
	return nil
}

func resultExt(r ytdl.Result, audioOnly bool) string {
	if audioOnly {
		return "mp3"
	}
	if r.Info.Ext != "" {
		return r.Info.Ext
	}
	return "mp4"
}

func (a *App) cmdUpdate(ctx context.Context, peer tg.InputPeerClass) error {
	return a.sendText(ctx, peer, "Update requires a manual redeploy; this gateway does not self-update.")
}

func (a *App) cmdLogs(ctx context.Context, peer tg.InputPeerClass) error {
	return a.sendText(ctx, peer, "Logs are written to "+a.cfg.DataDir+"/log.txt on the host.")
}

// cmdStatus reports host resource usage for the owner, backed by gopsutil
// instead of hand-parsed /proc files.
func (a *App) cmdStatus(ctx context.Context, peer tg.InputPeerClass) error {
	return a.sendText(ctx, peer, hostStatusReport(ctx, a.cfg.DataDir))
}

func (a *App) cmdShell(ctx context.Context, peer tg.InputPeerClass, args []string) error {
	if len(args) == 0 {
		return a.sendText(ctx, peer, "Usage: /sh <command>")
	}
	res, _ := procutil.RunCombined(ctx, "sh", "-c", strings.Join(args, " "))
	text := string(res.Stdout)
	if len(text) > 3500 {
		text = text[:3500] + "\n…(truncated)"
	}
	if text == "" {
		text = "(no output)"
	}
	return a.sendText(ctx, peer, text)
}

func (a *App) cmdAddPlan(ctx context.Context, peer tg.InputPeerClass, args []string) error {
	if len(args) < 4 {
		return a.sendText(ctx, peer, "Usage: /addplan <key> <label> <stars> <duration> <unit>")
	}
	stars, err := strconv.Atoi(args[2])
	if err != nil {
		return a.sendText(ctx, peer, "Invalid star amount.")
	}
	duration, err := strconv.Atoi(args[3])
	if err != nil {
		return a.sendText(ctx, peer, "Invalid duration.")
	}
	unit := config.UnitDays
	if len(args) > 4 {
		unit = config.DurationUnit(strings.ToLower(args[4]))
	}
	plan := store.PlanDoc{Key: args[0], Label: args[1], Stars: stars, Duration: duration, Unit: unit}
	if err := a.store.UpsertPlan(ctx, plan); err != nil {
		return a.sendText(ctx, peer, "Could not save that plan.")
	}
	return a.sendText(ctx, peer, "Plan saved.")
}

func (a *App) cmdDelPlan(ctx context.Context, peer tg.InputPeerClass, args []string) error {
	if len(args) < 1 {
		return a.sendText(ctx, peer, "Usage: /delplan <key>")
	}
	if err := a.store.DeletePlan(ctx, args[0]); err != nil {
		return a.sendText(ctx, peer, "Could not delete that plan.")
	}
	return a.sendText(ctx, peer, "Plan deleted.")
}

func (a *App) cmdListPlans(ctx context.Context, peer tg.InputPeerClass) error {
	plans, err := a.store.ListPlans(ctx)
	if err != nil || len(plans) == 0 {
		return a.sendText(ctx, peer, "No stored plan overrides.")
	}
	var sb strings.Builder
	for _, p := range plans {
		fmt.Fprintf(&sb, "%s: %s — %d★ / %d %s\n", p.Key, p.Label, p.Stars, p.Duration, p.Unit)
	}
	return a.sendText(ctx, peer, sb.String())
}

// cmdDelFolder is the one mutation the folder forest supports after
// creation: an explicit admin delete, cascading to every descendant folder
// and file.
func (a *App) cmdDelFolder(ctx context.Context, peer tg.InputPeerClass, args []string) error {
	if len(args) < 1 {
		return a.sendText(ctx, peer, "Usage: /delfolder <folderID>")
	}
	if err := a.store.DeleteFolderCascade(ctx, args[0]); err != nil {
		return a.sendText(ctx, peer, "Could not delete that folder.")
	}
	return a.sendText(ctx, peer, "Folder and its contents deleted.")
}

func (a *App) cmdCleanService(ctx context.Context, peer tg.InputPeerClass, args []string) error {
	if len(args) < 1 || (args[0] != "on" && args[0] != "off") {
		return a.sendText(ctx, peer, "Usage: /cleanservice on|off")
	}
	if err := a.store.SetConfigFlag(ctx, "cleanservice", args[0] == "on"); err != nil {
		return a.sendText(ctx, peer, "Could not update that setting.")
	}
	return a.sendText(ctx, peer, "Setting updated.")
}

// scanAdapter returns the history-scanning adapter backed by the best
// authenticated client available: the assist user session when configured
// (it can read channels the bot is not a member of), else the bot itself.
func (a *App) scanAdapter() *TelegramAdapter {
	if a.assist != nil {
		if peers := a.assist.Peers(); peers != nil {
			return NewTelegramAdapter(a.assist.API(), peers)
		}
	}
	return NewTelegramAdapter(a.bot.API(), a.peers)
}

func (a *App) renderIndexChunks(idx foldertree.Index, cleanChat string) []string {
	host := strings.TrimPrefix(strings.TrimPrefix(a.cfg.BaseURL, "https://"), "http://")
	return indexrender.Render(idx, host, cleanChat)
}
