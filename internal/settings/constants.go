package settings

// DB config keys and defaults.
const (
	// SiteNameKey is the DB config key for the site name.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback site name.
	DefaultSiteName = "Porsino"

	// UnlockThresholdKey controls the percent required on reading and
	// flashcard activities before exam and speed-test unlock.
	UnlockThresholdKey = "UNLOCK_THRESHOLD_PERCENT"
	// DefaultUnlockThreshold is the fallback unlock threshold.
	DefaultUnlockThreshold = 80

	// OTPHourlyLimitKey controls the max OTP sends per mobile per rolling hour.
	OTPHourlyLimitKey = "OTP_HOURLY_LIMIT"
	// DefaultOTPHourlyLimit is the fallback hourly OTP send cap.
	DefaultOTPHourlyLimit = 5

	// OTPRetentionIntervalMinutesKey controls the expired-code sweep interval.
	OTPRetentionIntervalMinutesKey = "OTP_RETENTION_INTERVAL_MINUTES"
	// DefaultOTPRetentionIntervalMinutes is the fallback sweep interval.
	DefaultOTPRetentionIntervalMinutes = 30

	// ReferralBonusDaysKey controls subscription days credited per referral.
	ReferralBonusDaysKey = "REFERRAL_BONUS_DAYS"
	// DefaultReferralBonusDays is the fallback referral bonus.
	DefaultReferralBonusDays = 3

	// ChatJobTTLSecondsKey controls how long finished chat jobs stay readable.
	ChatJobTTLSecondsKey = "CHAT_JOB_TTL_SECONDS"
	// DefaultChatJobTTLSeconds is the fallback chat job TTL.
	DefaultChatJobTTLSeconds = 600
)
