package core

var (
	_ Registry           = (*ProviderRegistry)(nil)
	_ RegistrationLocker = (*MemoryRegistrationLocker)(nil)
	_ ConfigProvider     = (*CfgxConfigProvider)(nil)
	_ OptionsResolver    = GoOptionsResolver{}
)
